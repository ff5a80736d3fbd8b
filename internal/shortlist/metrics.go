package shortlist

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricGenerationsTotal    = "shortlist_generations_total"
	MetricGenerationDuration  = "shortlist_generation_duration_seconds"
	MetricCandidatesRetrieved = "shortlist_candidates_retrieved"
	MetricEntriesPersisted    = "shortlist_entries_persisted"
)

// Status labels for MetricGenerationsTotal.
const (
	StatusSuccess           = "success"
	StatusNotFound          = "not_found"
	StatusNotEmbedded       = "not_embedded"
	StatusUpstreamFailed    = "upstream_failed"
	StatusPersistenceFailed = "persistence_failed"
	StatusAborted           = "aborted"
)

// Metrics contains Prometheus metrics for shortlist generation.
// All operations are thread-safe.
type Metrics struct {
	generations *prometheus.CounterVec
	duration    prometheus.Histogram
	retrieved   prometheus.Histogram
	persisted   prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGenerationsTotal,
				Help: "Total number of shortlist generations by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricGenerationDuration,
				Help:    "Histogram of shortlist generation duration in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		retrieved: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricCandidatesRetrieved,
				Help:    "Number of candidates returned by similarity search per generation",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		persisted: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricEntriesPersisted,
				Help:    "Number of shortlist entries written per generation",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncGenerations increments the generations counter for status.
func (m *Metrics) IncGenerations(status string) {
	m.generations.WithLabelValues(status).Inc()
}

// ObserveDuration records a generation duration sample.
func (m *Metrics) ObserveDuration(seconds float64) {
	m.duration.Observe(seconds)
}

// ObserveRetrieved records the size of a retrieved candidate pool.
func (m *Metrics) ObserveRetrieved(n int) {
	m.retrieved.Observe(float64(n))
}

// ObservePersisted records the number of persisted entries.
func (m *Metrics) ObservePersisted(n int) {
	m.persisted.Observe(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.generations,
		m.duration,
		m.retrieved,
		m.persisted,
	}
}
