package backlight

import (
	"fmt"
	"time"

	"github.com/nnarain/backlight/internal/strip"
)

// CommandPayload is the transport-neutral command body shared by the REST
// PUT endpoint and the MQTT command topic. Every field is optional; absent
// fields leave the corresponding state untouched.
type CommandPayload struct {
	State  *string      `json:"state,omitempty" example:"ON" doc:"Desired power state: ON or OFF"`
	Effect *string      `json:"effect,omitempty" example:"solid" doc:"Effect to select: rainbow or solid"`
	Color  *strip.Color `json:"color,omitempty" doc:"Color for the solid effect"`
	FadeMs *int         `json:"fade_ms,omitempty" example:"50" doc:"Per-pixel wipe delay in milliseconds when turning off"`
}

// Apply validates the whole payload up front, then enqueues the commands
// in a fixed order: color, then effect, then power. Validation failure
// enqueues nothing, so a bad payload never leaves the state half-applied.
func (c *Controller) Apply(p CommandPayload) error {
	var power Power
	if p.State != nil {
		pw, err := ParsePower(*p.State)
		if err != nil {
			return err
		}
		power = pw
	}

	var effect Effect
	if p.Effect != nil {
		ef, err := ParseEffect(*p.Effect)
		if err != nil {
			return err
		}
		effect = ef
	}

	fade := DefaultFade
	if p.FadeMs != nil {
		if *p.FadeMs < 0 {
			return fmt.Errorf("fade_ms must not be negative, got %d", *p.FadeMs)
		}
		fade = time.Duration(*p.FadeMs) * time.Millisecond
	}

	if p.Color != nil {
		if err := c.post(command{kind: cmdSetColor, color: *p.Color}); err != nil {
			return err
		}
	}
	if p.Effect != nil {
		if err := c.post(command{kind: cmdSetEffect, effect: effect}); err != nil {
			return err
		}
	}
	if p.State != nil {
		switch power {
		case PowerOn:
			if err := c.TurnOn(); err != nil {
				return err
			}
		case PowerOff:
			if err := c.TurnOff(fade); err != nil {
				return err
			}
		}
	}
	return nil
}
