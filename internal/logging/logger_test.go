package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestModuleLevelOverride(t *testing.T) {
	// Reset state
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	mutex.Unlock()

	// Global info level, with per-module overrides
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"backlight": "debug",
			"mqtt":      "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"backlight", true, true, true},
		{"mqtt", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			logger := GetLogger(tt.module)
			handler := logger.Handler()

			gotDebug := handler.Enabled(context.Background(), slog.LevelDebug)
			gotInfo := handler.Enabled(context.Background(), slog.LevelInfo)
			gotWarn := handler.Enabled(context.Background(), slog.LevelWarn)

			if gotDebug != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, gotDebug, tt.wantDebug)
			}
			if gotInfo != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, gotInfo, tt.wantInfo)
			}
			if gotWarn != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, gotWarn, tt.wantWarn)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  *slog.Level
	}{
		{"debug", levelPtr(slog.LevelDebug)},
		{"INFO", levelPtr(slog.LevelInfo)},
		{"warning", levelPtr(slog.LevelWarn)},
		{"error", levelPtr(slog.LevelError)},
		{"bogus", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := parseLevel(tt.input)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, *tt.want)
		}
	}
}

func levelPtr(l slog.Level) *slog.Level {
	return &l
}
