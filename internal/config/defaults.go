package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/nnarain/backlight/internal/logging"
)

// RGB is the color table shape used in the config file.
type RGB struct {
	R uint8 `toml:"r"`
	G uint8 `toml:"g"`
	B uint8 `toml:"b"`
}

// Defaults is the optional [backlight] section of the config file. The
// daemon applies it to the controller at startup and again whenever the
// file changes, so the strip can be driven by editing backlight.toml.
// Absent keys leave the corresponding state untouched.
type Defaults struct {
	State  string `toml:"state"`
	Effect string `toml:"effect"`
	Color  *RGB   `toml:"color"`
	FadeMs *int   `toml:"fade_ms"`
}

// Empty reports whether the section sets anything at all.
func (d Defaults) Empty() bool {
	return d.State == "" && d.Effect == "" && d.Color == nil && d.FadeMs == nil
}

// FileSettings is the live-reloadable subset of the config file: logging
// levels and the backlight defaults.
type FileSettings struct {
	Logging  logging.Config
	Defaults Defaults
}

// LoadFileSettings reads the reloadable settings from a TOML config file.
// A missing file yields defaults; a malformed file is an error so the
// watcher can report it instead of silently applying zero values.
func LoadFileSettings(path string) (FileSettings, error) {
	settings := FileSettings{
		Logging: logging.Config{
			Level:   "info",
			Format:  "text",
			Modules: make(map[string]string),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	var raw struct {
		Logging   map[string]string `toml:"logging"`
		Backlight Defaults          `toml:"backlight"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return settings, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			settings.Logging.Level = value
		case "format":
			settings.Logging.Format = value
		default:
			settings.Logging.Modules[key] = value
		}
	}
	settings.Defaults = raw.Backlight

	return settings, nil
}
