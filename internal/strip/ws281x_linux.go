//go:build linux && cgo

package strip

import (
	"fmt"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"
)

// ws281x drives a WS281x strip through the rpi_ws281x DMA library.
// Requires root on a Raspberry Pi (PWM/DMA access).
type ws281x struct {
	dev   *ws2811.WS2811
	count int
}

func newWS281x(cfg Config) (Strip, error) {
	opt := ws2811.DefaultOptions
	opt.Channels[0].GpioPin = cfg.GpioPin
	opt.Channels[0].Brightness = cfg.Brightness
	opt.Channels[0].LedCount = cfg.LedCount

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create WS281x device: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize WS281x device: %w", err)
	}

	return &ws281x{dev: dev, count: cfg.LedCount}, nil
}

func (w *ws281x) SetPixel(i int, c Color) error {
	if i < 0 || i >= w.count {
		return fmt.Errorf("%w: %d (count %d)", ErrPixelOutOfRange, i, w.count)
	}
	w.dev.Leds(0)[i] = uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	return nil
}

func (w *ws281x) Show() error {
	if err := w.dev.Render(); err != nil {
		return fmt.Errorf("failed to render strip: %w", err)
	}
	return nil
}

func (w *ws281x) PixelCount() int {
	return w.count
}

func (w *ws281x) Close() error {
	w.dev.Fini()
	return nil
}
