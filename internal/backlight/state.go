package backlight

import (
	"fmt"
	"strings"

	"github.com/nnarain/backlight/internal/strip"
)

// Power is the on/off state of the backlight.
type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

// Effect is the active animation mode while powered on.
type Effect string

const (
	EffectRainbow Effect = "rainbow"
	EffectSolid   Effect = "solid"
)

// ParseEffect converts a transport-supplied effect name.
func ParseEffect(name string) (Effect, error) {
	switch strings.ToLower(name) {
	case "rainbow":
		return EffectRainbow, nil
	case "solid":
		return EffectSolid, nil
	default:
		return "", fmt.Errorf("unknown effect %q", name)
	}
}

// ParsePower converts a transport-supplied power value ("ON"/"OFF").
func ParsePower(value string) (Power, error) {
	switch strings.ToUpper(value) {
	case "ON":
		return PowerOn, nil
	case "OFF":
		return PowerOff, nil
	default:
		return "", fmt.Errorf("unknown power state %q", value)
	}
}

// State is the complete observable snapshot of the backlight. Every field
// is always defined; Effect and Color keep their last value while off.
type State struct {
	Power  Power
	Effect Effect
	Color  strip.Color
}

// Payload is the serialized state published to transports (MQTT state
// topic, REST responses, SSE). Effect is present only while on; color only
// while the solid effect is selected.
type Payload struct {
	State  string       `json:"state" example:"ON" doc:"Power state: ON or OFF"`
	Effect string       `json:"effect,omitempty" example:"rainbow" doc:"Active effect while on"`
	Color  *strip.Color `json:"color,omitempty" doc:"Solid color while the solid effect is active"`
}

// Payload returns the wire representation of the state.
func (s State) Payload() Payload {
	p := Payload{State: string(s.Power)}
	if s.Power == PowerOn {
		p.Effect = string(s.Effect)
		if s.Effect == EffectSolid {
			c := s.Color
			p.Color = &c
		}
	}
	return p
}
