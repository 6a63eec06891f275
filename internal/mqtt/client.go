package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

// client implements Client on top of paho.
type client struct {
	config  Config
	metrics *metrics.MQTTMetrics
	logger  logger.Logger

	mu            sync.Mutex
	internal      paho.Client
	subscriptions map[string]MessageHandler
}

// NewClient creates a disconnected paho-backed client.
func NewClient(config Config, m *metrics.MQTTMetrics, log logger.Logger) Client {
	if log == nil {
		log = logger.Global().Module("mqtt")
	}
	return &client{
		config:        config,
		metrics:       m,
		logger:        log,
		subscriptions: make(map[string]MessageHandler),
	}
}

// Connect resolves the broker host first so DNS problems surface with a
// clear error, then connects with automatic reconnects enabled.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectionError(fmt.Errorf("invalid broker URL: %w", err))
	}
	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectionError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnect)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internal = paho.NewClient(opts)
	token := c.internal.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return c.connectionError(fmt.Errorf("connection timeout after %v", c.config.ConnectTimeout))
	}
	if err := token.Error(); err != nil {
		return c.connectionError(err)
	}
	return nil
}

func (c *client) connectionError(err error) error {
	c.metrics.IncrementErrors()
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", c.config.Broker).
		Build()
}

// Publish sends payload to topic and waits for the broker to accept it.
func (c *client) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		c.metrics.IncrementErrors()
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := internal.Publish(topic, c.config.QoS, false, payload)
	var err error
	if !token.WaitTimeout(c.config.PublishTimeout) {
		err = fmt.Errorf("publish timeout after %v", c.config.PublishTimeout)
	} else {
		err = token.Error()
	}
	c.metrics.ObservePublish(time.Since(start), err)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

// Subscribe registers handler for topic. Subscriptions are replayed on every
// (re)connect because sessions are clean.
func (c *client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	token := internal.Subscribe(topic, c.config.QoS, wrapHandler(handler))
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return c.connectionError(fmt.Errorf("subscribe timeout for %s", topic))
	}
	return token.Error()
}

// IsConnected reports whether the broker connection is up.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the broker connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internal
	c.internal = nil
	c.mu.Unlock()

	if internal != nil {
		internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(internal paho.Client) {
	c.metrics.UpdateConnectionStatus(true)
	c.logger.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))

	c.mu.Lock()
	subscriptions := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subscriptions[topic] = handler
	}
	c.mu.Unlock()

	// Runs on paho's goroutine; waiting on the tokens here would stall the connection.
	for topic, handler := range subscriptions {
		internal.Subscribe(topic, c.config.QoS, wrapHandler(handler))
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
	c.logger.Warn("connection to MQTT broker lost, reconnecting",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
}

func wrapHandler(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}
