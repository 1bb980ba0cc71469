package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/prometheus/client_golang/prometheus"
)

// RecognitionMetrics contains all Prometheus metrics related to recognition requests.
// It implements recognition.Observer.
type RecognitionMetrics struct {
	Outcomes         *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	MatchDistance    prometheus.Histogram
	Duration         prometheus.Histogram
	GallerySize      prometheus.Gauge
	GalleryRefreshed prometheus.Gauge
}

var _ recognition.Observer = (*RecognitionMetrics)(nil)

// NewRecognitionMetrics creates and registers the recognition metrics.
func NewRecognitionMetrics(registry prometheus.Registerer) (*RecognitionMetrics, error) {
	m := &RecognitionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recognition metrics: %w", err)
	}
	return m, nil
}

func (m *RecognitionMetrics) initMetrics() {
	m.Outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recognition_outcomes_total",
		Help: "Total number of recognition requests by outcome",
	}, []string{"outcome"})

	m.Failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recognition_failures_total",
		Help: "Total number of recognition requests that failed, by reason",
	}, []string{"reason"})

	m.MatchDistance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recognition_match_distance",
		Help:    "Distance between the probe and the closest gallery identity",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 12),
	})

	m.Duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recognition_duration_seconds",
		Help:    "Time spent matching and recording a probe",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	m.GallerySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gallery_identities",
		Help: "Number of identities in the current gallery snapshot",
	})

	m.GalleryRefreshed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gallery_last_refresh_time_seconds",
		Help: "Timestamp of the last successful gallery refresh",
	})
}

// Describe implements prometheus.Collector.
func (m *RecognitionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Outcomes.Describe(ch)
	m.Failures.Describe(ch)
	m.MatchDistance.Describe(ch)
	m.Duration.Describe(ch)
	m.GallerySize.Describe(ch)
	m.GalleryRefreshed.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *RecognitionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Outcomes.Collect(ch)
	m.Failures.Collect(ch)
	m.MatchDistance.Collect(ch)
	m.Duration.Collect(ch)
	m.GallerySize.Collect(ch)
	m.GalleryRefreshed.Collect(ch)
}

// ObserveRecognition records the outcome, match distance and duration of a request.
func (m *RecognitionMetrics) ObserveRecognition(res recognition.Result, elapsed time.Duration) {
	m.Outcomes.WithLabelValues(res.Outcome.String()).Inc()
	if !math.IsInf(res.Distance, 0) {
		m.MatchDistance.Observe(res.Distance)
	}
	m.Duration.Observe(elapsed.Seconds())
}

// ObserveFailure counts a request that ended in an error.
func (m *RecognitionMetrics) ObserveFailure(reason string) {
	m.Failures.WithLabelValues(reason).Inc()
}

// SetGallerySize records a new gallery snapshot.
func (m *RecognitionMetrics) SetGallerySize(size int) {
	m.GallerySize.Set(float64(size))
	m.GalleryRefreshed.SetToCurrentTime()
}
