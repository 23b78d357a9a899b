package backlight

import "github.com/nnarain/backlight/internal/strip"

// Wheel maps a position on a 0-255 color wheel to an RGB color using the
// classic three-segment piecewise-linear ramp: red→green, green→blue,
// blue→red. At every position exactly one channel is zero and the other
// two sum to 255.
func Wheel(pos uint8) strip.Color {
	switch {
	case pos < 85:
		return strip.Color{R: pos * 3, G: 255 - pos*3, B: 0}
	case pos < 170:
		pos -= 85
		return strip.Color{R: 255 - pos*3, G: 0, B: pos * 3}
	default:
		pos -= 170
		return strip.Color{R: 0, G: pos * 3, B: 255 - pos*3}
	}
}

// rainbowHue returns the wheel position for pixel i of count at the given
// phase, distributing one full wheel revolution uniformly across the strip.
func rainbowHue(i, count int, phase uint8) uint8 {
	return uint8((i*256/count + int(phase)) & 255)
}
