package events

import "github.com/nnarain/backlight/internal/backlight"

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeCommandRejected
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published after every backlight state transition.
// Carries the same wire payload the MQTT state topic and REST responses use.
type StateChangedEvent struct {
	backlight.Payload
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// CommandRejectedEvent is published when a transport receives a command it
// cannot apply: malformed payload, unknown effect, or a full queue.
type CommandRejectedEvent struct {
	Source    string `json:"source" example:"mqtt" doc:"Transport that received the command"`
	Reason    string `json:"reason" example:"unknown effect \"strobe\"" doc:"Why the command was rejected"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Rejection timestamp"`
}

// Type returns the event type identifier for CommandRejectedEvent.
func (e CommandRejectedEvent) Type() uint32 { return TypeCommandRejected }
