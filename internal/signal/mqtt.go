package signal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTConfig configures the broker-backed driver.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

// MQTT publishes signal aspects to per-direction topics, retained so the
// hardware side picks up the current aspect after its own reconnects. It
// keeps a shadow copy of the commanded states because the broker is
// write-only from the controller's point of view.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	states    map[model.Direction]model.SignalState
}

type aspectMessage struct {
	Direction string    `json:"direction"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMQTT connects to the broker. Auto-reconnect is left to the paho client;
// publishes while disconnected fail fast and the controller treats them as
// best-effort.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	d := &MQTT{
		cfg:    cfg,
		logger: logger.With("component", "signal_mqtt"),
		states: make(map[model.Direction]model.SignalState, 4),
	}
	for _, dir := range model.AllDirections() {
		d.states[dir] = model.SignalRed
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		d.mu.Lock()
		d.connected = true
		d.mu.Unlock()
		d.logger.Info("mqtt connection established", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		d.mu.Lock()
		d.connected = false
		d.mu.Unlock()
		d.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", cfg.BrokerURL)
	}

	d.client = mqtt.NewClient(opts)

	token := d.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()

	return d, nil
}

func (d *MQTT) SetDirectionState(dir model.Direction, state model.SignalState) error {
	if err := d.publish(dir, state); err != nil {
		return err
	}
	d.mu.Lock()
	d.states[dir] = state
	d.mu.Unlock()
	return nil
}

func (d *MQTT) SetAll(state model.SignalState) error {
	var firstErr error
	for _, dir := range model.AllDirections() {
		if err := d.SetDirectionState(dir, state); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *MQTT) States() map[model.Direction]model.SignalState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[model.Direction]model.SignalState, len(d.states))
	for dir, s := range d.states {
		out[dir] = s
	}
	return out
}

func (d *MQTT) Close() error {
	if d.client != nil && d.client.IsConnected() {
		d.client.Disconnect(250)
		d.logger.Info("mqtt disconnected")
	}
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	return nil
}

func (d *MQTT) publish(dir model.Direction, state model.SignalState) error {
	if !d.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(aspectMessage{
		Direction: dir.String(),
		State:     state.String(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal aspect: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/state", d.cfg.TopicPrefix, strings.ToLower(dir.String()))

	// QoS 1 + retained: the head must converge on the latest commanded aspect.
	token := d.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	d.logger.Debug("aspect published", "topic", topic, "state", state)
	return nil
}

func (d *MQTT) isConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}
