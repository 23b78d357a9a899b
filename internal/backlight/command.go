package backlight

import (
	"time"

	"github.com/nnarain/backlight/internal/strip"
)

type cmdKind int

const (
	cmdTurnOn cmdKind = iota
	cmdTurnOff
	cmdSetEffect
	cmdSetColor
	cmdClear
	cmdShutdown
)

func (k cmdKind) String() string {
	switch k {
	case cmdTurnOn:
		return "turn_on"
	case cmdTurnOff:
		return "turn_off"
	case cmdSetEffect:
		return "set_effect"
	case cmdSetColor:
		return "set_color"
	case cmdClear:
		return "clear"
	case cmdShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// command is an immutable directive consumed by the worker in FIFO order.
type command struct {
	kind   cmdKind
	effect Effect
	color  strip.Color
	fade   time.Duration // per-pixel wipe delay for turn_off/clear
}
