package backlight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backlight_commands_total",
		Help: "Commands accepted onto the controller queue, by command kind.",
	}, []string{"command"})

	commandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backlight_commands_dropped_total",
		Help: "Commands rejected because the queue was full.",
	})

	framesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backlight_frames_total",
		Help: "Frames flushed to the strip, by effect.",
	}, []string{"effect"})

	renderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backlight_render_errors_total",
		Help: "Frames abandoned due to strip I/O errors.",
	})
)
