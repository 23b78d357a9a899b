package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/events"
	"github.com/nnarain/backlight/internal/logging"
)

const (
	connectTimeout = 10 * time.Second
	commandQoS     = 1
	stateQoS       = 1
)

// Config holds MQTT connection and topic settings.
type Config struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	CommandTopic string
	StateTopic   string
}

// Bridge connects the backlight controller to an MQTT broker: it applies
// commands from the command topic and mirrors every state transition to
// the retained state topic.
type Bridge struct {
	cfg        Config
	client     paho.Client
	controller *backlight.Controller
	bus        *events.Bus
	unsub      func()
	handlers   map[string]paho.MessageHandler
	logger     *slog.Logger
}

// NewBridge creates a bridge. Call Start to connect.
func NewBridge(cfg Config, controller *backlight.Controller, bus *events.Bus) *Bridge {
	b := &Bridge{
		cfg:        cfg,
		controller: controller,
		bus:        bus,
		logger:     logging.GetLogger("mqtt"),
	}

	// Explicit topic dispatch. New topics get a row here instead of a
	// wildcard subscription.
	b.handlers = map[string]paho.MessageHandler{
		cfg.CommandTopic: b.handleSet,
	}
	return b
}

// Start connects to the broker. Subscriptions are re-established on every
// (re)connect, and the retained state topic is refreshed so late joiners
// see the current state.
func (b *Bridge) Start() error {
	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.logger.Warn("MQTT connection lost", "error", err)
		})

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", b.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", b.cfg.Broker, err)
	}

	// Mirror controller transitions to the state topic.
	b.unsub = b.bus.Subscribe(func(e events.StateChangedEvent) {
		b.publishState(e.Payload)
	})

	return nil
}

// Stop detaches from the bus and disconnects from the broker.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) onConnect(client paho.Client) {
	b.logger.Info("Connected to MQTT broker", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID)

	for topic, handler := range b.handlers {
		if token := client.Subscribe(topic, commandQoS, handler); token.Wait() && token.Error() != nil {
			b.logger.Error("Failed to subscribe", "topic", topic, "error", token.Error())
		} else {
			b.logger.Info("Subscribed to command topic", "topic", topic)
		}
	}

	// Refresh the retained state so subscribers that connected while we
	// were away catch up immediately.
	b.publishState(b.controller.State().Payload())
}

// handleSet parses a command payload from the command topic and applies it.
func (b *Bridge) handleSet(_ paho.Client, msg paho.Message) {
	b.logger.Debug("Command received", "topic", msg.Topic(), "payload", string(msg.Payload()))

	var payload backlight.CommandPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		b.reject(fmt.Errorf("malformed command payload: %w", err))
		return
	}

	if err := b.controller.Apply(payload); err != nil {
		b.reject(err)
	}
}

// reject logs a bad command and publishes a rejection event. Malformed
// commands never interrupt the bridge.
func (b *Bridge) reject(err error) {
	b.logger.Warn("Rejected MQTT command", "error", err)
	b.bus.Publish(events.CommandRejectedEvent{
		Source:    "mqtt",
		Reason:    err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// publishState publishes the state payload to the retained state topic.
func (b *Bridge) publishState(p backlight.Payload) {
	if b.client == nil || !b.client.IsConnected() {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		b.logger.Error("Failed to marshal state payload", "error", err)
		return
	}

	if token := b.client.Publish(b.cfg.StateTopic, stateQoS, true, data); token.Wait() && token.Error() != nil {
		b.logger.Warn("Failed to publish state", "topic", b.cfg.StateTopic, "error", token.Error())
	}
}
