// Package logging provides structured logging with per-module log level
// configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"backlight": "debug",  // Per-module overrides
//			"mqtt":      "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("backlight")
//	logger.Info("Starting up", "led_count", 60)
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t backlight              # All backlight logs
//	journalctl -t backlight -f           # Follow live
//	journalctl -t backlight -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t backlight MODULE=mqtt
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	backlight = "debug"
//	mqtt = "warn"
package logging
