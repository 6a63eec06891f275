package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the MQTT change transport.
type MQTTMetrics struct {
	ConnectionStatus prometheus.Gauge
	MessagesSent     prometheus.Counter
	MessagesReceived *prometheus.CounterVec // by outcome: applied, echo, foreign_key, malformed
	Errors           prometheus.Counter
	PublishLatency   prometheus.Histogram

	registry *prometheus.Registry
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aerodesk_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})
	m.MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aerodesk_mqtt_messages_sent_total",
		Help: "Change signals published to the broker",
	})
	m.MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerodesk_mqtt_messages_received_total",
		Help: "Change signals received from the broker by outcome",
	}, []string{"outcome"})
	m.Errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aerodesk_mqtt_errors_total",
		Help: "MQTT errors encountered",
	})
	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aerodesk_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations",
		Buckets: prometheus.DefBuckets,
	})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ConnectionStatus.Describe(ch)
	m.MessagesSent.Describe(ch)
	m.MessagesReceived.Describe(ch)
	m.Errors.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectionStatus.Collect(ch)
	m.MessagesSent.Collect(ch)
	m.MessagesReceived.Collect(ch)
	m.Errors.Collect(ch)
	m.PublishLatency.Collect(ch)
}

// UpdateConnectionStatus sets the connection gauge.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}

// ObservePublish records a publish attempt.
func (m *MQTTMetrics) ObservePublish(duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.Inc()
		return
	}
	m.MessagesSent.Inc()
	m.PublishLatency.Observe(duration.Seconds())
}

// RecordReceived counts an inbound message by outcome.
func (m *MQTTMetrics) RecordReceived(outcome string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(outcome).Inc()
}

// IncrementErrors counts a transport error.
func (m *MQTTMetrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}
