package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

// Outcomes recorded for inbound change signals.
const (
	OutcomeApplied    = "applied"
	OutcomeEcho       = "echo"
	OutcomeForeignKey = "foreign_key"
	OutcomeMalformed  = "malformed"
)

// ChangeSignal is the wire form of a change notification.
type ChangeSignal struct {
	Origin string    `json:"origin"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
}

// ChannelConfig configures a broker-backed change channel.
type ChannelConfig struct {
	Topic string
	// StoreKey scopes signals to processes sharing the same collection.
	StoreKey string
	Client   Client
	Metrics  *metrics.MQTTMetrics
	Logger   logger.Logger
}

// Channel is a notification.Channel that fans signals out to other
// processes through the broker. Local subscribers are notified
// synchronously; the broker publish happens on a background worker and
// pending signals coalesce.
type Channel struct {
	local   *notification.LocalChannel
	client  Client
	topic   string
	key     string
	origin  string
	metrics *metrics.MQTTMetrics
	logger  logger.Logger
	now     func() time.Time

	pending chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewChannel creates a broker-backed channel. Call Start to begin relaying.
func NewChannel(config ChannelConfig) *Channel {
	log := config.Logger
	if log == nil {
		log = logger.Global().Module("mqtt")
	}
	key := config.StoreKey
	if key == "" {
		key = notification.DefaultStoreKey
	}
	return &Channel{
		local:   notification.NewLocalChannel(),
		client:  config.Client,
		topic:   config.Topic,
		key:     key,
		origin:  uuid.NewString(),
		metrics: config.Metrics,
		logger:  log,
		now:     time.Now,
		pending: make(chan struct{}, 1),
	}
}

// Origin identifies this process in outgoing signals.
func (c *Channel) Origin() string {
	return c.origin
}

// Start subscribes to the topic and starts the publish worker. The client
// should already be connected; if it is not, the subscription is replayed
// when it connects.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if err := c.client.Subscribe(c.topic, c.handleMessage); err != nil {
		return err
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.wg.Go(func() { c.run(ctx) })
	return nil
}

// Stop relays a signal still pending, then stops the publish worker.
func (c *Channel) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

// Publish notifies local subscribers and queues a broker signal.
func (c *Channel) Publish(ctx context.Context) {
	c.local.Publish(ctx)
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

// Subscribe registers a local callback.
func (c *Channel) Subscribe(callback func()) func() {
	return c.local.Subscribe(callback)
}

// OnSubscriberChange forwards to the local channel.
func (c *Channel) OnSubscriberChange(hook func(subscribers int)) {
	c.local.OnSubscriberChange(hook)
}

// SubscriberCount returns the number of local subscribers.
func (c *Channel) SubscriberCount() int {
	return c.local.SubscriberCount()
}

func (c *Channel) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case <-c.pending:
				c.send(context.WithoutCancel(ctx))
			default:
			}
			return
		case <-c.pending:
			c.send(ctx)
		}
	}
}

func (c *Channel) send(ctx context.Context) {
	if !c.client.IsConnected() {
		c.metrics.IncrementErrors()
		c.logger.Debug("broker unavailable, change signal not relayed",
			logger.String("topic", c.topic))
		return
	}
	payload, err := json.Marshal(ChangeSignal{Origin: c.origin, Key: c.key, At: c.now().UTC()})
	if err != nil {
		c.logger.Error("failed to encode change signal", logger.Error(err))
		return
	}
	if err := c.client.Publish(ctx, c.topic, payload); err != nil {
		c.logger.Warn("failed to relay change signal",
			logger.String("topic", c.topic),
			logger.Error(err))
	}
}

func (c *Channel) handleMessage(_ string, payload []byte) {
	var signal ChangeSignal
	if err := json.Unmarshal(payload, &signal); err != nil || signal.Origin == "" {
		c.metrics.RecordReceived(OutcomeMalformed)
		c.logger.Debug("ignoring malformed change signal", logger.Int("bytes", len(payload)))
		return
	}
	switch {
	case signal.Origin == c.origin:
		c.metrics.RecordReceived(OutcomeEcho)
	case signal.Key != c.key:
		c.metrics.RecordReceived(OutcomeForeignKey)
	default:
		c.metrics.RecordReceived(OutcomeApplied)
		c.local.Publish(context.Background())
	}
}
