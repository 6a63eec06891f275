package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

const (
	defaultPushQueueSize = 64
	defaultPushTimeout   = 10 * time.Second
)

// PushProvider delivers a notification to an external service.
// Providers must be safe for concurrent use.
type PushProvider interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// PushConfig configures a PushDispatcher.
type PushConfig struct {
	// MinPriority is the least urgent priority that is pushed.
	MinPriority Priority
	Timeout     time.Duration
	QueueSize   int
}

// PushDispatcher forwards new notifications to push providers from a
// background worker. Dispatch never blocks; when the queue is full the
// notification is dropped and counted.
type PushDispatcher struct {
	providers   []PushProvider
	minPriority Priority
	timeout     time.Duration
	queue       chan *Notification
	metrics     *metrics.NotificationMetrics
	logger      logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPushDispatcher creates a stopped dispatcher.
func NewPushDispatcher(config PushConfig, providers []PushProvider, m *metrics.NotificationMetrics, log logger.Logger) *PushDispatcher {
	if !config.MinPriority.IsValid() {
		config.MinPriority = PriorityHigh
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultPushTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultPushQueueSize
	}
	if log == nil {
		log = logger.Global().Module("notification.push")
	}
	return &PushDispatcher{
		providers:   slices.Clone(providers),
		minPriority: config.MinPriority,
		timeout:     config.Timeout,
		queue:       make(chan *Notification, config.QueueSize),
		metrics:     m,
		logger:      log,
	}
}

// Dispatch queues n for delivery if it is urgent enough.
func (d *PushDispatcher) Dispatch(n *Notification) {
	if n == nil || len(d.providers) == 0 || !n.Priority.AtLeast(d.minPriority) {
		return
	}
	select {
	case d.queue <- n:
	default:
		d.drop(n, "push queue full, dropping notification")
	}
}

// Start launches the delivery worker. It stops when ctx is done or Stop is called.
func (d *PushDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.running = true
	go d.run(ctx, d.done)

	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	d.logger.Info("push dispatcher started",
		logger.Strings("providers", names),
		logger.String("min_priority", string(d.minPriority)))
}

// Stop cancels the worker and waits for it to exit. Notifications already
// queued are still delivered, bounded by the push timeout.
func (d *PushDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	done := d.done
	d.running = false
	d.mu.Unlock()
	<-done
}

func (d *PushDispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

// drain delivers whatever is still queued. Once the push timeout has passed
// the rest is dropped and counted.
func (d *PushDispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			if ctx.Err() != nil {
				d.drop(n, "push timeout expired during shutdown")
				continue
			}
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *PushDispatcher) drop(n *Notification, reason string) {
	for _, p := range d.providers {
		d.metrics.RecordPush(p.Name(), "dropped", 0)
	}
	d.logger.Warn(reason,
		logger.String("id", n.ID),
		logger.Int("queue_size", cap(d.queue)))
}

func (d *PushDispatcher) deliver(ctx context.Context, n *Notification) {
	for _, p := range d.providers {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		start := time.Now()
		err := p.Send(sendCtx, n)
		cancel()

		if err != nil {
			d.metrics.RecordPush(p.Name(), "error", time.Since(start))
			wrapped := errors.New(err).
				Component("notification.push").
				Category(errors.CategoryIntegration).
				Context("provider", p.Name()).
				Context("id", n.ID).
				Build()
			d.logger.Warn("push delivery failed",
				logger.String("provider", p.Name()),
				logger.String("id", n.ID),
				logger.Error(wrapped))
			continue
		}
		d.metrics.RecordPush(p.Name(), "success", time.Since(start))
		d.logger.Debug("push delivered",
			logger.String("provider", p.Name()),
			logger.String("id", n.ID))
	}
}

// PushTitle is the short title used by providers that support one.
func PushTitle(n *Notification) string {
	return fmt.Sprintf("%s %s", n.FlightNumber, n.Airline)
}

// PushBody formats "[<priority>] <flightNumber> <message> (<route>)".
func PushBody(n *Notification) string {
	return fmt.Sprintf("[%s] %s %s (%s)", n.Priority, n.FlightNumber, n.Message, n.Route)
}

// ShoutrrrProvider sends through one shoutrrr router covering every configured URL.
type ShoutrrrProvider struct {
	name   string
	sender *router.ServiceRouter
}

// NewShoutrrrProvider validates urls by building the sender.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, errors.ValidationError("at least one push URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notification.push").
			Category(errors.CategoryConfiguration).
			Context("provider", "shoutrrr").
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	if name = strings.TrimSpace(name); name == "" {
		name = "shoutrrr"
	}
	return &ShoutrrrProvider{name: name, sender: sender}, nil
}

// Name implements PushProvider.
func (s *ShoutrrrProvider) Name() string { return s.name }

// Send implements PushProvider. The router applies its own timeout.
func (s *ShoutrrrProvider) Send(_ context.Context, n *Notification) error {
	params := stypes.Params{}
	params.SetTitle(PushTitle(n))
	for _, err := range s.sender.Send(PushBody(n), &params) {
		if err != nil {
			return err
		}
	}
	return nil
}

// WebhookProvider POSTs the notification as JSON to a URL.
type WebhookProvider struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookProvider creates a provider posting to url. A nil client uses http.DefaultClient.
func NewWebhookProvider(name, url string, client *http.Client) *WebhookProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "webhook"
	}
	return &WebhookProvider{name: name, url: url, client: client}
}

// Name implements PushProvider.
func (w *WebhookProvider) Name() string { return w.name }

type webhookPayload struct {
	Title        string        `json:"title"`
	Body         string        `json:"body"`
	Notification *Notification `json:"notification"`
}

// Send implements PushProvider. Any non-2xx response is an error.
func (w *WebhookProvider) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(webhookPayload{Title: PushTitle(n), Body: PushBody(n), Notification: n})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
