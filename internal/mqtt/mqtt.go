// Package mqtt carries notification change signals between aerodesk
// processes that share a store, over an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/aerodesk/aerodesk/internal/conf"
)

// MessageHandler receives inbound messages.
type MessageHandler func(topic string, payload []byte)

// Client defines the MQTT operations the change channel needs.
type Client interface {
	// Connect connects to the broker. Subscriptions made before or after
	// Connect survive reconnects.
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
	IsConnected() bool
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration
}

// DefaultConfig returns a Config with reasonable timeouts.
func DefaultConfig() Config {
	return Config{
		QoS:               1,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      2 * time.Minute,
	}
}

// ConfigFromSettings builds a Config. The client ID gets instanceID appended
// so several processes can share a configured ID without kicking each other off.
func ConfigFromSettings(settings conf.MQTTSettings, instanceID string) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.Broker
	cfg.Username = settings.Username
	cfg.Password = settings.Password
	cfg.QoS = settings.QoS

	cfg.ClientID = settings.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = "aerodesk"
	}
	if instanceID != "" {
		if len(instanceID) > 8 {
			instanceID = instanceID[:8]
		}
		cfg.ClientID += "-" + instanceID
	}
	return cfg
}
