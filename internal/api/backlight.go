package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/events"
)

// StateResponse carries the current backlight state.
type StateResponse struct {
	Body backlight.Payload
}

// CommandRequest wraps the shared command payload.
type CommandRequest struct {
	Body backlight.CommandPayload
}

// CommandResponse acknowledges an enqueued command. The command is applied
// asynchronously; subscribe to /api/events or the MQTT state topic for the
// resulting transition.
type CommandResponse struct {
	Body struct {
		Accepted bool `json:"accepted" example:"true" doc:"Whether the command was enqueued"`
	}
}

// ClearRequest optionally overrides the wipe delay.
type ClearRequest struct {
	Body *struct {
		FadeMs *int `json:"fade_ms,omitempty" example:"50" doc:"Per-pixel wipe delay in milliseconds"`
	}
}

// registerBacklightRoutes registers state and command endpoints.
func (s *Server) registerBacklightRoutes() {
	// Current state
	huma.Register(s.api, huma.Operation{
		OperationID: "get-backlight",
		Method:      http.MethodGet,
		Path:        "/api/backlight",
		Summary:     "Get Backlight State",
		Description: "Get the current power state, active effect, and solid color",
		Tags:        []string{"backlight"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*StateResponse, error) {
		return &StateResponse{Body: s.controller.State().Payload()}, nil
	})

	// Apply a command
	huma.Register(s.api, huma.Operation{
		OperationID: "set-backlight",
		Method:      http.MethodPut,
		Path:        "/api/backlight",
		Summary:     "Set Backlight State",
		Description: "Change power state, effect, or solid color. Fields are optional and applied together; the command is executed asynchronously by the animation worker.",
		Tags:        []string{"backlight"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(_ context.Context, input *CommandRequest) (*CommandResponse, error) {
		if err := s.controller.Apply(input.Body); err != nil {
			s.rejectCommand(err)
			if errors.Is(err, backlight.ErrQueueFull) {
				return nil, huma.Error503ServiceUnavailable("Command queue is full", err)
			}
			return nil, huma.Error422UnprocessableEntity("Invalid backlight command", err)
		}

		resp := &CommandResponse{}
		resp.Body.Accepted = true
		return resp, nil
	})

	// Clear the strip without touching state
	huma.Register(s.api, huma.Operation{
		OperationID: "clear-backlight",
		Method:      http.MethodPost,
		Path:        "/api/backlight/clear",
		Summary:     "Clear Strip",
		Description: "Wipe every pixel to black without changing the power state or selected effect",
		Tags:        []string{"backlight"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(_ context.Context, input *ClearRequest) (*CommandResponse, error) {
		fade := backlight.DefaultFade
		if input.Body != nil && input.Body.FadeMs != nil {
			if *input.Body.FadeMs < 0 {
				err := errors.New("fade_ms must not be negative")
				s.rejectCommand(err)
				return nil, huma.Error422UnprocessableEntity("Invalid clear command", err)
			}
			fade = time.Duration(*input.Body.FadeMs) * time.Millisecond
		}

		if err := s.controller.Clear(fade); err != nil {
			s.rejectCommand(err)
			return nil, huma.Error503ServiceUnavailable("Command queue is full", err)
		}

		resp := &CommandResponse{}
		resp.Body.Accepted = true
		return resp, nil
	})
}

// rejectCommand publishes a rejection event so SSE and MQTT observers see
// commands that never reached the worker.
func (s *Server) rejectCommand(err error) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(events.CommandRejectedEvent{
		Source:    "rest",
		Reason:    err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
