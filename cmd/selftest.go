package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/logging"
	"github.com/nnarain/backlight/internal/strip"
)

// CreateSelftestCmd creates the hardware self-test command. It exercises
// the strip directly, without the daemon: three solid wipes, one rainbow
// sweep, then clear. Useful after wiring a new strip to verify the GPIO
// pin, LED count, and color order.
func CreateSelftestCmd() *cobra.Command {
	var ledCount int
	var gpioPin int
	var brightness int
	var driver string
	var wipeDelayMs int

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run a hardware test pattern on the strip",
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("selftest")

			dev, err := strip.New(driver, strip.Config{
				LedCount:   ledCount,
				GpioPin:    gpioPin,
				Brightness: brightness,
			}, logger)
			if err != nil {
				logger.Error("Failed to open strip", "error", err)
				os.Exit(1)
			}
			defer dev.Close()

			delay := time.Duration(wipeDelayMs) * time.Millisecond
			colors := []strip.Color{
				{R: 255},
				{G: 255},
				{B: 255},
			}

			for _, col := range colors {
				logger.Info("Wiping strip", "r", col.R, "g", col.G, "b", col.B)
				if err := wipe(dev, col, delay); err != nil {
					logger.Error("Wipe failed", "error", err)
					os.Exit(1)
				}
			}

			logger.Info("Rainbow sweep")
			for phase := 0; phase < 256; phase += 4 {
				for i := 0; i < dev.PixelCount(); i++ {
					hue := uint8((i*256/dev.PixelCount() + phase) & 255)
					if err := dev.SetPixel(i, backlight.Wheel(hue)); err != nil {
						logger.Error("SetPixel failed", "error", err)
						os.Exit(1)
					}
				}
				if err := dev.Show(); err != nil {
					logger.Error("Show failed", "error", err)
					os.Exit(1)
				}
				time.Sleep(20 * time.Millisecond)
			}

			logger.Info("Clearing strip")
			if err := wipe(dev, strip.Black, 0); err != nil {
				logger.Error("Clear failed", "error", err)
				os.Exit(1)
			}

			logger.Info("Self test complete")
		},
	}

	cmd.Flags().IntVar(&ledCount, "led-count", 60, "Number of LEDs on the strip")
	cmd.Flags().IntVar(&gpioPin, "gpio-pin", 18, "GPIO pin driving the strip")
	cmd.Flags().IntVar(&brightness, "brightness", 255, "Strip brightness (0-255)")
	cmd.Flags().StringVar(&driver, "driver", "ws281x", "Strip driver (ws281x or memory)")
	cmd.Flags().IntVar(&wipeDelayMs, "wipe-delay-ms", 50, "Per-pixel wipe delay in milliseconds")
	return cmd
}

func wipe(dev strip.Strip, col strip.Color, delay time.Duration) error {
	for i := 0; i < dev.PixelCount(); i++ {
		if err := dev.SetPixel(i, col); err != nil {
			return err
		}
		if delay > 0 {
			if err := dev.Show(); err != nil {
				return err
			}
			time.Sleep(delay)
		}
	}
	return dev.Show()
}
