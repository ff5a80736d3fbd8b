package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricChecksTotal      = "rate_limit_checks_total"
	MetricStoreErrorsTotal = "rate_limit_store_errors_total"
)

// Result labels for MetricChecksTotal.
const (
	ResultAllowed    = "allowed"
	ResultLimited    = "limited"
	ResultFailedOpen = "failed_open"
)

// Metrics contains Prometheus metrics for rate limit checks.
type Metrics struct {
	checks      *prometheus.CounterVec
	storeErrors prometheus.Counter
}

// NewMetrics creates unregistered rate limit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricChecksTotal,
				Help: "Total number of rate limit checks by policy and result",
			},
			[]string{"policy", "result"},
		),
		storeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricStoreErrorsTotal,
				Help: "Total number of counter store failures resolved by failing open",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncChecks increments the checks counter.
func (m *Metrics) IncChecks(policy, result string) {
	m.checks.WithLabelValues(policy, result).Inc()
}

// IncStoreErrors increments the store error counter.
func (m *Metrics) IncStoreErrors() {
	m.storeErrors.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.checks,
		m.storeErrors,
	}
}
