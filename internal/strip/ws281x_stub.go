//go:build !linux || !cgo

package strip

import "errors"

// The WS281x driver needs the rpi_ws281x cgo bindings, which only build on
// Linux. Other platforms can still run with the memory driver.
func newWS281x(Config) (Strip, error) {
	return nil, errors.New("ws281x driver requires linux with cgo; use the memory driver")
}
