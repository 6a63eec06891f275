// Package metrics provides custom Prometheus metrics for the notification bus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics covers the lifecycle of notifications and push delivery.
// Every method is safe to call on a nil receiver so components can run
// without telemetry.
type NotificationMetrics struct {
	CreatedTotal       *prometheus.CounterVec   // by type, priority
	TransitionsTotal   *prometheus.CounterVec   // by target status
	RejectedTotal      *prometheus.CounterVec   // by reason
	PanelRemovalsTotal *prometheus.CounterVec   // by panel
	StoreErrorsTotal   *prometheus.CounterVec   // by operation
	StoreDuration      *prometheus.HistogramVec // by operation
	PublishesTotal     prometheus.Counter
	Subscribers        prometheus.Gauge
	Active             *prometheus.GaugeVec   // by panel
	PushTotal          *prometheus.CounterVec // by provider, result
	PushDuration       *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.CreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_notifications_created_total",
		Help: "Notifications created by type and priority",
	}, []string{"type", "priority"})

	m.TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_notification_transitions_total",
		Help: "Accepted status transitions by target status",
	}, []string{"status"})

	m.RejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_notification_rejections_total",
		Help: "Rejected operations by reason (not_found, invalid_transition, validation, rate_limited)",
	}, []string{"reason"})

	m.PanelRemovalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_notification_panel_removals_total",
		Help: "Notifications dismissed from a panel",
	}, []string{"panel"})

	m.StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_notification_store_errors_total",
		Help: "Store failures absorbed by the bus, by operation",
	}, []string{"operation"})

	m.StoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aerodesk_notification_store_duration_seconds",
		Help:    "Store operation latency",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	m.PublishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aerodesk_notification_publishes_total",
		Help: "Change signals published",
	})

	m.Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aerodesk_notification_subscribers",
		Help: "Registered change subscribers",
	})

	m.Active = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aerodesk_notifications_active",
		Help: "Notifications currently targeting each panel",
	}, []string{"panel"})

	m.PushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_push_deliveries_total",
		Help: "Push deliveries by provider and result (success, error, dropped)",
	}, []string{"provider", "result"})

	m.PushDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aerodesk_push_delivery_duration_seconds",
		Help:    "Push delivery latency by provider",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})
}

// Describe implements prometheus.Collector.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CreatedTotal.Describe(ch)
	m.TransitionsTotal.Describe(ch)
	m.RejectedTotal.Describe(ch)
	m.PanelRemovalsTotal.Describe(ch)
	m.StoreErrorsTotal.Describe(ch)
	m.StoreDuration.Describe(ch)
	m.PublishesTotal.Describe(ch)
	m.Subscribers.Describe(ch)
	m.Active.Describe(ch)
	m.PushTotal.Describe(ch)
	m.PushDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CreatedTotal.Collect(ch)
	m.TransitionsTotal.Collect(ch)
	m.RejectedTotal.Collect(ch)
	m.PanelRemovalsTotal.Collect(ch)
	m.StoreErrorsTotal.Collect(ch)
	m.StoreDuration.Collect(ch)
	m.PublishesTotal.Collect(ch)
	m.Subscribers.Collect(ch)
	m.Active.Collect(ch)
	m.PushTotal.Collect(ch)
	m.PushDuration.Collect(ch)
}

// RecordCreated counts a new notification.
func (m *NotificationMetrics) RecordCreated(notifType, priority string) {
	if m == nil {
		return
	}
	m.CreatedTotal.WithLabelValues(notifType, priority).Inc()
}

// RecordTransition counts an accepted status change.
func (m *NotificationMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(status).Inc()
}

// RecordRejection counts a refused operation.
func (m *NotificationMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// RecordPanelRemoval counts records dismissed from a panel.
func (m *NotificationMetrics) RecordPanelRemoval(panel string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.PanelRemovalsTotal.WithLabelValues(panel).Add(float64(count))
}

// ObserveStore records store latency and, when err is non-nil, a store error.
func (m *NotificationMetrics) ObserveStore(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.StoreErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordPublish counts a change signal.
func (m *NotificationMetrics) RecordPublish() {
	if m == nil {
		return
	}
	m.PublishesTotal.Inc()
}

// SetSubscribers sets the subscriber gauge.
func (m *NotificationMetrics) SetSubscribers(count int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(count))
}

// SetActive sets the number of records targeting a panel.
func (m *NotificationMetrics) SetActive(panel string, count int) {
	if m == nil {
		return
	}
	m.Active.WithLabelValues(panel).Set(float64(count))
}

// RecordPush records a push delivery attempt.
func (m *NotificationMetrics) RecordPush(provider, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PushTotal.WithLabelValues(provider, result).Inc()
	if duration > 0 {
		m.PushDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}
