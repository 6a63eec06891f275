package notification

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/observability/metrics"
)

var testEpoch = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testEpoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// wrapsSentinel reports whether target itself sits in err's unwrap chain.
// Unlike errors.Is it does not match other errors of the same category.
func wrapsSentinel(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func newTestMetrics(t *testing.T) *metrics.NotificationMetrics {
	t.Helper()
	m, err := metrics.NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

type serviceOption func(*ServiceConfig)

func newTestService(t *testing.T, opts ...serviceOption) (*Service, *testClock) {
	t.Helper()
	clock := newTestClock()
	cfg := &ServiceConfig{
		Store:    NewInMemoryStore(),
		Channel:  NewLocalChannel(),
		Language: "en",
		Logger:   quietLogger(),
		Clock:    clock.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewService(cfg), clock
}

func emergencyRequest(flight string, st SubType) *CreateRequest {
	return &CreateRequest{
		FlightID:     "flight-" + flight,
		FlightNumber: flight,
		Airline:      "Air France",
		Captain:      "Jeanne Martin",
		CaptainID:    "captain-1",
		Route:        FormatRoute("CDG", "SGN"),
		Type:         TypeEmergency,
		SubType:      st,
	}
}

func groundRequest(flight string, st SubType) *CreateRequest {
	req := emergencyRequest(flight, st)
	req.Type = TypeGroundCrewRequest
	return req
}

func mustCreate(t *testing.T, s *Service, req *CreateRequest) *Notification {
	t.Helper()
	n, err := s.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, n)
	return n
}

// failingStore fails every call with the configured errors.
type failingStore struct {
	listErr    error
	replaceErr error
	inner      *InMemoryStore
}

func newFailingStore(listErr, replaceErr error) *failingStore {
	return &failingStore{listErr: listErr, replaceErr: replaceErr, inner: NewInMemoryStore()}
}

func (s *failingStore) ListAll(ctx context.Context) ([]*Notification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.inner.ListAll(ctx)
}

func (s *failingStore) ReplaceAll(ctx context.Context, notifications []*Notification) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	return s.inner.ReplaceAll(ctx, notifications)
}

var errStoreDown = errors.NewStd("store unavailable")

// countingChannel wraps a LocalChannel and counts publishes.
type countingChannel struct {
	*LocalChannel
	mu        sync.Mutex
	publishes int
}

func newCountingChannel() *countingChannel {
	return &countingChannel{LocalChannel: NewLocalChannel()}
}

func (c *countingChannel) Publish(ctx context.Context) {
	c.mu.Lock()
	c.publishes++
	c.mu.Unlock()
	c.LocalChannel.Publish(ctx)
}

func (c *countingChannel) Publishes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publishes
}
