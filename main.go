package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nnarain/backlight/cmd"
	"github.com/nnarain/backlight/internal/api"
	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/config"
	"github.com/nnarain/backlight/internal/events"
	"github.com/nnarain/backlight/internal/logging"
	"github.com/nnarain/backlight/internal/mqtt"
	"github.com/nnarain/backlight/internal/strip"
	"github.com/nnarain/backlight/internal/xmlrpc"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"backlight.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Strip settings
	StripDriver string `help:"Strip driver (ws281x, memory)" default:"ws281x" toml:"strip.driver" env:"STRIP_DRIVER"`
	LedCount    int    `help:"Number of LEDs on the strip" default:"60" toml:"strip.led_count" env:"LED_COUNT"`
	GpioPin     int    `help:"GPIO pin driving the strip" default:"18" toml:"strip.gpio_pin" env:"GPIO_PIN"`
	Brightness  int    `help:"Strip brightness (0-255)" default:"255" toml:"strip.brightness" env:"BRIGHTNESS"`
	FadeMs      int    `help:"Default per-pixel wipe delay in milliseconds" default:"50" toml:"strip.fade_ms" env:"FADE_MS"`

	// MQTT settings
	MqttBroker       string `help:"MQTT broker URL (empty disables MQTT)" default:"" toml:"mqtt.broker" env:"MQTT_BROKER"`
	MqttClientId     string `help:"MQTT client identifier" default:"backlight" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MqttUsername     string `help:"MQTT username" default:"" toml:"mqtt.username" env:"MQTT_USERNAME"`
	MqttPassword     string `help:"MQTT password" default:"" toml:"mqtt.password" env:"MQTT_PASSWORD"`
	MqttCommandTopic string `help:"MQTT command topic" default:"backlight/set" toml:"mqtt.command_topic" env:"MQTT_COMMAND_TOPIC"`
	MqttStateTopic   string `help:"MQTT state topic" default:"backlight/state" toml:"mqtt.state_topic" env:"MQTT_STATE_TOPIC"`

	// XML-RPC settings
	RpcAddr string `help:"XML-RPC listen address (empty disables XML-RPC)" default:":6142" toml:"rpc.addr" env:"RPC_ADDR"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBacklight string `help:"Controller logging level" default:"info" toml:"logging.backlight" env:"LOGGING_BACKLIGHT"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingMqtt      string `help:"MQTT logging level" default:"info" toml:"logging.mqtt" env:"LOGGING_MQTT"`
	LoggingXmlrpc    string `help:"XML-RPC logging level" default:"info" toml:"logging.xmlrpc" env:"LOGGING_XMLRPC"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"backlight": opts.LoggingBacklight,
				"api":       opts.LoggingAPI,
				"mqtt":      opts.LoggingMqtt,
				"xmlrpc":    opts.LoggingXmlrpc,
			},
		})

		logger := logging.GetLogger("main")

		// Open the strip
		dev, err := strip.New(opts.StripDriver, strip.Config{
			LedCount:   opts.LedCount,
			GpioPin:    opts.GpioPin,
			Brightness: opts.Brightness,
		}, logger)
		if err != nil {
			logger.Error("Failed to open strip", "error", err)
			os.Exit(1)
		}

		// Event bus for in-process event handling
		eventBus := events.New()

		// Controller owns the strip; every transition is published on the bus
		controller := backlight.New(dev, logging.GetLogger("backlight"))
		controller.SetStateCallback(func(s backlight.State) {
			eventBus.Publish(events.StateChangedEvent{
				Payload:   s.Payload(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})

		// REST API with Prometheus metrics
		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Controller:        controller,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.Handler(),
		})

		// Optional MQTT bridge
		var bridge *mqtt.Bridge
		if opts.MqttBroker != "" {
			bridge = mqtt.NewBridge(mqtt.Config{
				Broker:       opts.MqttBroker,
				ClientID:     opts.MqttClientId,
				Username:     opts.MqttUsername,
				Password:     opts.MqttPassword,
				CommandTopic: opts.MqttCommandTopic,
				StateTopic:   opts.MqttStateTopic,
			}, controller, eventBus)
		}

		// Optional XML-RPC endpoint for legacy panels
		var rpcServer *xmlrpc.Server
		if opts.RpcAddr != "" {
			rpcServer = xmlrpc.NewServer(controller, time.Duration(opts.FadeMs)*time.Millisecond)
		}

		// Apply the [backlight] defaults from the config file once the
		// worker is running, and again on every file change. Editing
		// backlight.toml is a valid way to drive the strip.
		applyDefaults := func(d config.Defaults) {
			if d.Empty() {
				return
			}
			payload := backlight.CommandPayload{FadeMs: d.FadeMs}
			if d.State != "" {
				payload.State = &d.State
			}
			if d.Effect != "" {
				payload.Effect = &d.Effect
			}
			if d.Color != nil {
				payload.Color = &strip.Color{R: d.Color.R, G: d.Color.G, B: d.Color.B}
			}
			if applyErr := controller.Apply(payload); applyErr != nil {
				logger.Warn("Invalid backlight defaults in config file", "error", applyErr)
			}
		}

		// Watch the config file for logging level and default changes
		var watcher *config.Watcher[config.FileSettings]
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			watcher = config.NewConfigWatcher(
				opts.Config,
				config.LoadFileSettings,
				logger,
			)
			watcher.OnReload(func(settings config.FileSettings) {
				logger.Info("Applying config from file", "level", settings.Logging.Level)
				logging.Initialize(settings.Logging)
				applyDefaults(settings.Defaults)
			})
		}

		hooks.OnStart(func() {
			controller.Start()

			if settings, loadErr := config.LoadFileSettings(opts.Config); loadErr == nil {
				applyDefaults(settings.Defaults)
			}

			if bridge != nil {
				if startErr := bridge.Start(); startErr != nil {
					logger.Warn("MQTT bridge unavailable, continuing without it", "error", startErr)
					bridge = nil
				}
			}

			if rpcServer != nil {
				go func() {
					if startErr := rpcServer.Start(opts.RpcAddr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
						logger.Error("XML-RPC server failed", "error", startErr)
					}
				}()
			}

			if watcher != nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Config watcher unavailable", "error", startErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")

			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if rpcServer != nil {
				if stopErr := rpcServer.Stop(); stopErr != nil {
					logger.Error("Error stopping XML-RPC server", "error", stopErr)
				}
			}

			if bridge != nil {
				bridge.Stop()
			}

			// Last: fade the strip out and release the hardware
			controller.Stop()
		})
	})

	cli.Root().AddCommand(cmd.CreateSelftestCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
