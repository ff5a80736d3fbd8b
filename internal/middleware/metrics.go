package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricThrottleRequests      = "http_throttle_requests_total"
	MetricThrottleBlocked       = "http_throttle_blocked_total"
	MetricAuthFailures          = "http_auth_failures_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

// Metrics contains Prometheus metrics for middleware operations.
// All operations are thread-safe.
type Metrics struct {
	throttleRequests    *prometheus.CounterVec
	throttleBlocked     *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		throttleRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricThrottleRequests,
				Help: "Total number of front throttle checks by endpoint",
			},
			[]string{"endpoint"},
		),
		throttleBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricThrottleBlocked,
				Help: "Total number of requests rejected by the front throttle by endpoint",
			},
			[]string{"endpoint"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuthFailures,
				Help: "Total number of rejected bearer tokens by reason",
			},
			[]string{"reason"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestSizeBytes,
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100 B to ~100 MB
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100 B to ~100 MB
			},
			[]string{"method", "path", "status"},
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

// IncThrottleRequests increments the front throttle checks counter.
// endpoint: normalized route (e.g., "/proposals")
func (m *Metrics) IncThrottleRequests(endpoint string) {
	m.throttleRequests.WithLabelValues(endpoint).Inc()
}

// IncThrottleBlocked increments the front throttle rejection counter.
func (m *Metrics) IncThrottleBlocked(endpoint string) {
	m.throttleBlocked.WithLabelValues(endpoint).Inc()
}

// IncAuthFailures increments the rejected token counter.
// reason: "missing", "malformed" or "invalid"
func (m *Metrics) IncAuthFailures(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records HTTP request metrics.
// method: HTTP method (e.g., "GET", "POST")
// path: Normalized request path (e.g., "/jobs/{id}/shortlist")
// status: HTTP status code (e.g., 200, 404)
// duration: Request duration in seconds
// requestSize: Request body size in bytes
// responseSize: Response body size in bytes
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.throttleRequests,
		m.throttleBlocked,
		m.authFailures,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}
