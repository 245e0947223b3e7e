package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the ward display feed.
type MQTTConfig struct {
	Broker         string        `env:"MQTT_BROKER"`                                 // Broker URI, e.g. tcp://mqtt:1883; empty disables the feed.
	ClientID       string        `env:"MQTT_CLIENT_ID" envDefault:"wardwatch"`       // ClientID must be unique per replica.
	Username       string        `env:"MQTT_USERNAME"`                               // Username is optional.
	Password       string        `env:"MQTT_PASSWORD"`                               // Password is optional.
	QoS            byte          `env:"MQTT_QOS" envDefault:"1"`                     // QoS for published events.
	TopicPattern   string        `env:"MQTT_TOPIC" envDefault:"hospitals/%s/alerts"` // TopicPattern takes the hospital id.
	ConnectTimeout time.Duration `env:"MQTT_CONNECT_TIMEOUT" envDefault:"10s"`       // ConnectTimeout bounds the initial connect.
	PublishTimeout time.Duration `env:"MQTT_PUBLISH_TIMEOUT" envDefault:"5s"`        // PublishTimeout bounds each publish.
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// ConnectMQTT opens a client with auto-reconnect.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: MQTT_BROKER is required", ErrInvalidConfig)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt connect to %s", ErrPublishTimeout, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

// mqttPublisher is the part of mqtt.Client the bus uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTBus publishes events to a per-hospital topic.
type MQTTBus struct {
	client  mqttPublisher
	pattern string
	qos     byte
	timeout time.Duration
}

// NewMQTTBus creates a bus over a connected client.
func NewMQTTBus(client mqttPublisher, cfg MQTTConfig) *MQTTBus {
	pattern := cfg.TopicPattern
	if !strings.Contains(pattern, "%s") {
		pattern = "hospitals/%s/alerts"
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTBus{
		client:  client,
		pattern: pattern,
		qos:     min(cfg.QoS, 2),
		timeout: timeout,
	}
}

// Topic returns the topic for hospitalID.
func (b *MQTTBus) Topic(hospitalID string) string {
	return fmt.Sprintf(b.pattern, hospitalID)
}

func (b *MQTTBus) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	token := b.client.Publish(b.Topic(ev.HospitalID), b.qos, false, payload)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: topic %s", ErrPublishTimeout, b.Topic(ev.HospitalID))
	}

	if err := token.Error(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}
