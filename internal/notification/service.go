package notification

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

// Operator names recorded when the caller does not supply one.
const (
	DefaultATCOperator        = "ATC Controller"
	DefaultGroundCrewOperator = "Ground Crew"
)

// Dispatcher receives every newly created notification, e.g. to push it
// to external services. Dispatch must not block.
type Dispatcher interface {
	Dispatch(n *Notification)
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Store   Store
	Channel Channel
	// Language selects the message catalog ("vi", "en").
	Language string
	// RateLimitPerMinute caps ground service requests per captain; 0
	// disables it. Emergencies are never throttled.
	RateLimitPerMinute int
	RateLimitBurst     int
	Dispatcher         Dispatcher
	Metrics            *metrics.NotificationMetrics
	Logger             logger.Logger
	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// DefaultServiceConfig returns an in-memory, in-process configuration.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Store:    NewInMemoryStore(),
		Channel:  NewLocalChannel(),
		Language: "vi",
	}
}

// subscriberWatcher is implemented by channels that report their subscriber count.
type subscriberWatcher interface {
	OnSubscriberChange(hook func(subscribers int))
}

// Service is the lifecycle manager of the bus. Every mutation reads the
// full collection, computes the next one, replaces it in the store and
// publishes a change signal. A mutex serializes mutations within the
// process; across processes sharing a store the last writer wins.
type Service struct {
	store      Store
	channel    Channel
	catalog    *Catalog
	limiter    *CaptainRateLimiter
	dispatcher Dispatcher
	metrics    *metrics.NotificationMetrics
	logger     logger.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewService creates a Service. Missing collaborators fall back to the defaults.
func NewService(config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	s := &Service{
		store:      config.Store,
		channel:    config.Channel,
		catalog:    NewCatalog(config.Language),
		limiter:    NewCaptainRateLimiter(config.RateLimitPerMinute, config.RateLimitBurst),
		dispatcher: config.Dispatcher,
		metrics:    config.Metrics,
		logger:     config.Logger,
		now:        config.Clock,
	}
	if s.store == nil {
		s.store = NewInMemoryStore()
	}
	if s.channel == nil {
		s.channel = NewLocalChannel()
	}
	if s.logger == nil {
		s.logger = logger.Global().Module("notification")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if w, ok := s.channel.(subscriberWatcher); ok && s.metrics != nil {
		w.OnSubscriberChange(s.metrics.SetSubscribers)
	}
	return s
}

// Channel returns the change channel the service publishes on.
func (s *Service) Channel() Channel {
	return s.channel
}

// Ping checks the backing store when it can report its own health.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryDatabase).
			Context("operation", "ping").
			Build()
	}
	return nil
}

// Subscribe registers callback for change signals.
func (s *Service) Subscribe(callback func()) (unsubscribe func()) {
	return s.channel.Subscribe(callback)
}

// Create validates req, stores a new PENDING notification at the front of
// the collection and returns a copy of it.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Notification, error) {
	if req == nil {
		return nil, errors.ValidationError("create request is required")
	}
	if err := req.Validate(); err != nil {
		s.metrics.RecordRejection("validation")
		return nil, err
	}

	now := s.now()
	if req.Type != TypeEmergency && !s.limiter.Allow(req.CaptainID, now) {
		s.metrics.RecordRejection("rate_limited")
		return nil, errors.New(fmt.Errorf("%w: captain %s", ErrRateLimited, req.CaptainID)).
			Component("notification").
			Category(errors.CategoryRateLimit).
			Context("captain_id", req.CaptainID).
			Build()
	}

	created := Build(req, now, s.catalog)
	err := s.mutate(ctx, "create", func(current []*Notification) ([]*Notification, bool, error) {
		return append([]*Notification{created.Clone()}, current...), true, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCreated(string(created.Type), string(created.Priority))
	s.logger.Info("notification created",
		logger.String("id", created.ID),
		logger.String("flight_number", created.FlightNumber),
		logger.String("type", string(created.Type)),
		logger.String("sub_type", string(created.SubType)),
		logger.String("priority", string(created.Priority)))

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(created.Clone())
	}
	return created, nil
}

// Acknowledge moves a PENDING notification to ACKNOWLEDGED and records who did it.
func (s *Service) Acknowledge(ctx context.Context, id, by string) (*Notification, error) {
	by = operatorOr(by, DefaultATCOperator)
	return s.update(ctx, "acknowledge", id, func(n *Notification, now time.Time) error {
		if err := checkTransition(n, StatusAcknowledged); err != nil {
			return err
		}
		n.Status = StatusAcknowledged
		n.AcknowledgedAt = &now
		n.AcknowledgedBy = by
		return nil
	})
}

// SetStatus applies a generic transition. Moving to COMPLETED stamps completedAt.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Notification, error) {
	return s.update(ctx, "set_status", id, func(n *Notification, now time.Time) error {
		if err := checkTransition(n, status); err != nil {
			return err
		}
		n.Status = status
		if status == StatusCompleted {
			n.CompletedAt = &now
		}
		return nil
	})
}

// Accept is the ground crew's single action: acknowledge if still pending,
// then start work. It is written as one change.
func (s *Service) Accept(ctx context.Context, id, by string) (*Notification, error) {
	by = operatorOr(by, DefaultGroundCrewOperator)
	return s.update(ctx, "accept", id, func(n *Notification, now time.Time) error {
		if n.Status == StatusPending {
			n.Status = StatusAcknowledged
			n.AcknowledgedAt = &now
			n.AcknowledgedBy = by
		}
		if err := checkTransition(n, StatusInProgress); err != nil {
			return err
		}
		if n.AcknowledgedBy == "" {
			n.AcknowledgedBy = by
		}
		n.Status = StatusInProgress
		return nil
	})
}

// Complete is SetStatus(id, COMPLETED).
func (s *Service) Complete(ctx context.Context, id string) (*Notification, error) {
	return s.SetStatus(ctx, id, StatusCompleted)
}

// Cancel is SetStatus(id, CANCELLED).
func (s *Service) Cancel(ctx context.Context, id string) (*Notification, error) {
	return s.SetStatus(ctx, id, StatusCancelled)
}

// RemoveFromPanel dismisses a notification from one panel and deletes it
// once no panel is left. Removing from a panel the record does not target
// reports not found, so repeating the call is harmless.
func (s *Service) RemoveFromPanel(ctx context.Context, id string, panel Panel) error {
	if err := validatePanel(panel); err != nil {
		return err
	}
	var deleted bool
	err := s.mutate(ctx, "remove_from_panel", func(current []*Notification) ([]*Notification, bool, error) {
		idx := slices.IndexFunc(current, func(n *Notification) bool { return n.ID == id })
		if idx < 0 || !current[idx].Targets(panel) {
			return nil, false, notFound(id)
		}
		n := current[idx]
		n.TargetPanels = slices.DeleteFunc(n.TargetPanels, func(p Panel) bool { return p == panel })
		if len(n.TargetPanels) == 0 {
			deleted = true
			return slices.Delete(current, idx, idx+1), true, nil
		}
		return current, true, nil
	})
	if err != nil {
		s.reject(err)
		return err
	}

	s.metrics.RecordPanelRemoval(string(panel), 1)
	s.logger.Debug("notification removed from panel",
		logger.String("id", id),
		logger.String("panel", string(panel)),
		logger.Bool("deleted", deleted))
	return nil
}

// ClearForPanel removes panel from every record targeting it in one write
// and returns how many records were affected.
func (s *Service) ClearForPanel(ctx context.Context, panel Panel) (int, error) {
	if err := validatePanel(panel); err != nil {
		return 0, err
	}
	var affected int
	err := s.mutate(ctx, "clear_for_panel", func(current []*Notification) ([]*Notification, bool, error) {
		next := make([]*Notification, 0, len(current))
		for _, n := range current {
			if !n.Targets(panel) {
				next = append(next, n)
				continue
			}
			affected++
			n.TargetPanels = slices.DeleteFunc(n.TargetPanels, func(p Panel) bool { return p == panel })
			if len(n.TargetPanels) > 0 {
				next = append(next, n)
			}
		}
		return next, affected > 0, nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecordPanelRemoval(string(panel), affected)
	s.logger.Info("panel cleared",
		logger.String("panel", string(panel)),
		logger.Int("affected", affected))
	return affected, nil
}

// DeleteOutright removes a notification regardless of its remaining panels.
func (s *Service) DeleteOutright(ctx context.Context, id string) error {
	err := s.mutate(ctx, "delete", func(current []*Notification) ([]*Notification, bool, error) {
		idx := slices.IndexFunc(current, func(n *Notification) bool { return n.ID == id })
		if idx < 0 {
			return nil, false, notFound(id)
		}
		return slices.Delete(current, idx, idx+1), true, nil
	})
	if err != nil {
		s.reject(err)
		return err
	}
	s.logger.Debug("notification deleted", logger.String("id", id))
	return nil
}

// ClearAll empties the whole collection and returns how many records were dropped.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	var dropped int
	err := s.mutate(ctx, "clear_all", func(current []*Notification) ([]*Notification, bool, error) {
		dropped = len(current)
		return []*Notification{}, dropped > 0, nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("all notifications cleared", logger.Int("dropped", dropped))
	return dropped, nil
}

// ListAll returns a snapshot of the collection, newest first.
func (s *Service) ListAll(ctx context.Context) []*Notification {
	return s.load(ctx)
}

// List returns the collection filtered by f.
func (s *Service) List(ctx context.Context, f *FilterOptions) []*Notification {
	return Filter(s.load(ctx), f)
}

// Get returns one notification.
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	for _, n := range s.load(ctx) {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, notFound(id)
}

// ForPanel returns the records targeting panel in store order, filtered by f.
func (s *Service) ForPanel(ctx context.Context, panel Panel, f *FilterOptions) []*Notification {
	return Project(s.load(ctx), panel, f)
}

// Counts returns the badge counts for both panels.
func (s *Service) Counts(ctx context.Context) Counts {
	return Tally(s.load(ctx))
}

// update applies fn to the record with the given id as one mutation.
func (s *Service) update(ctx context.Context, operation, id string, fn func(n *Notification, now time.Time) error) (*Notification, error) {
	var updated *Notification
	err := s.mutate(ctx, operation, func(current []*Notification) ([]*Notification, bool, error) {
		idx := slices.IndexFunc(current, func(n *Notification) bool { return n.ID == id })
		if idx < 0 {
			return nil, false, notFound(id)
		}
		if err := fn(current[idx], s.now()); err != nil {
			return nil, false, err
		}
		updated = current[idx].Clone()
		return current, true, nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.metrics.RecordTransition(string(updated.Status))
	s.logger.Info("notification updated",
		logger.String("operation", operation),
		logger.String("id", id),
		logger.String("status", string(updated.Status)))
	return updated, nil
}

// mutate runs fn over a fresh snapshot under the lock. When fn reports a
// change the result replaces the stored collection and, if the write
// succeeded, a change signal is published after the lock is released.
func (s *Service) mutate(ctx context.Context, operation string, fn func(current []*Notification) ([]*Notification, bool, error)) error {
	s.mu.Lock()
	next, changed, err := fn(s.load(ctx))
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	saved := s.save(ctx, operation, next)
	s.mu.Unlock()

	if saved {
		s.metrics.RecordPublish()
		s.channel.Publish(ctx)
	}
	return nil
}

// load reads the collection. Read failures are logged and treated as an
// empty collection so panels keep working on stale or broken data.
func (s *Service) load(ctx context.Context) []*Notification {
	start := time.Now()
	notifications, err := s.store.ListAll(ctx)
	s.metrics.ObserveStore("list_all", time.Since(start), err)
	if err != nil {
		s.logger.Warn("failed to read notifications, treating as empty",
			logger.Error(err),
			logger.String("category", string(errors.CategoryOf(err))))
		return []*Notification{}
	}
	return notifications
}

// save writes the collection. Write failures are logged, not returned.
func (s *Service) save(ctx context.Context, operation string, notifications []*Notification) bool {
	start := time.Now()
	err := s.store.ReplaceAll(ctx, notifications)
	s.metrics.ObserveStore("replace_all", time.Since(start), err)
	if err != nil {
		s.logger.Error("failed to save notifications",
			logger.Error(err),
			logger.String("operation", operation),
			logger.Int("count", len(notifications)))
		return false
	}

	counts := Tally(notifications)
	for _, panel := range Panels {
		s.metrics.SetActive(string(panel), counts.ForPanel(panel).Total)
	}
	return true
}

func (s *Service) reject(err error) {
	switch {
	case errors.IsNotFound(err):
		s.metrics.RecordRejection("not_found")
		s.logger.Debug("notification not found", logger.Error(err))
	case errors.IsCategory(err, errors.CategoryState):
		s.metrics.RecordRejection("invalid_transition")
		s.logger.Warn("transition rejected", logger.Error(err))
	case errors.IsCategory(err, errors.CategoryValidation):
		s.metrics.RecordRejection("validation")
	}
}

func notFound(id string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrNotificationNotFound, id)).
		Component("notification").
		Category(errors.CategoryNotFound).
		Context("id", id).
		Build()
}

func validatePanel(panel Panel) error {
	if panel.IsValid() {
		return nil
	}
	return errors.Newf("unknown panel %q", panel).
		Component("notification").
		Category(errors.CategoryValidation).
		Build()
}

func operatorOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

// ParsePanel accepts "ATC", "atc", "GROUND_CREW", "ground-crew" and "ground_crew".
func ParsePanel(s string) (Panel, error) {
	normalized := Panel(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if err := validatePanel(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
