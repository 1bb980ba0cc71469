package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics contains all Prometheus metrics related to attendance event publishing.
type EventMetrics struct {
	ConnectionStatus prometheus.Gauge
	Published        prometheus.Counter
	Dropped          prometheus.Counter
	Errors           prometheus.Counter
	PublishLatency   prometheus.Histogram
}

// NewEventMetrics creates and registers the event publishing metrics.
func NewEventMetrics(registry prometheus.Registerer) (*EventMetrics, error) {
	m := &EventMetrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "events_mqtt_connection_status",
			Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of attendance events delivered to the broker",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of attendance events dropped because the queue was full",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_errors_total",
			Help: "Total number of attendance events that failed to publish",
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "events_publish_latency_seconds",
			Help:    "Latency of MQTT publish operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.ConnectionStatus, m.Published, m.Dropped, m.Errors, m.PublishLatency} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register event metrics: %w", err)
		}
	}
	return m, nil
}

// UpdateConnectionStatus records whether the broker connection is up.
func (m *EventMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}

// ObservePublished records a delivered event and its publish latency in seconds.
func (m *EventMetrics) ObservePublished(latencySeconds float64) {
	m.Published.Inc()
	m.PublishLatency.Observe(latencySeconds)
}

// IncrementDropped counts an event dropped on a full queue.
func (m *EventMetrics) IncrementDropped() {
	m.Dropped.Inc()
}

// IncrementErrors counts a failed publish.
func (m *EventMetrics) IncrementErrors() {
	m.Errors.Inc()
}
