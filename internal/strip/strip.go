package strip

import (
	"errors"
	"fmt"
	"log/slog"
)

// Color is an RGB triple with 8-bit channels. No alpha.
type Color struct {
	R uint8 `json:"r" doc:"Red channel (0-255)"`
	G uint8 `json:"g" doc:"Green channel (0-255)"`
	B uint8 `json:"b" doc:"Blue channel (0-255)"`
}

var (
	// Black is the all-off color.
	Black = Color{}

	// ErrPixelOutOfRange is returned by SetPixel for an index outside
	// [0, PixelCount).
	ErrPixelOutOfRange = errors.New("pixel index out of range")
)

// Strip is an addressable run of LEDs. Implementations provide no
// concurrency guarantees of their own; callers must ensure exactly one
// goroutine touches a strip at a time.
type Strip interface {
	// SetPixel stages a color for pixel i in the in-memory buffer.
	SetPixel(i int, c Color) error
	// Show flushes the staged buffer to the device.
	Show() error
	// PixelCount returns the number of addressable pixels.
	PixelCount() int
	// Close releases the device.
	Close() error
}

// Config holds hardware parameters for a strip driver.
type Config struct {
	LedCount   int
	GpioPin    int
	Brightness int
}

// New creates a strip for the given driver name.
// Supported drivers: "ws281x" (hardware, Linux only) and "memory".
func New(driver string, cfg Config, logger *slog.Logger) (Strip, error) {
	if cfg.LedCount <= 0 {
		return nil, fmt.Errorf("invalid led count %d", cfg.LedCount)
	}

	switch driver {
	case "ws281x":
		logger.Info("Initializing WS281x strip",
			"led_count", cfg.LedCount,
			"gpio_pin", cfg.GpioPin,
			"brightness", cfg.Brightness)
		return newWS281x(cfg)
	case "memory":
		logger.Info("Using in-memory strip", "led_count", cfg.LedCount)
		return NewMemory(cfg.LedCount), nil
	default:
		return nil, fmt.Errorf("unknown strip driver %q", driver)
	}
}
