package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/freelamatch/internal/middleware"
)

// ServiceName names the HTTP server in traces and the root response.
const ServiceName = "freelamatch-api"

// RouterConfig wires the handlers and middleware into one http.Handler.
type RouterConfig struct {
	Logger     *slog.Logger
	Shortlists *ShortlistHandlers
	Writes     *WriteHandlers
	Health     *HealthHandlers

	// Validator authenticates the write endpoints.
	Validator middleware.TokenValidator
	// Metrics receives HTTP, throttle and auth metrics. Optional.
	Metrics *middleware.Metrics
	// Gatherer backs GET /metrics. Optional.
	Gatherer prometheus.Gatherer
	// Throttle is the per-client front throttle. Optional.
	Throttle *middleware.IPThrottle
	// CORS configures cross-origin access. A zero value disables CORS.
	CORS middleware.CORSConfig
	// TracingEnabled wraps the handler with otelhttp.
	TracingEnabled bool
}

// NewRouter builds the API handler.
//
// Middleware order, outermost first: RequestID, Tracing, Logging, HTTPMetrics,
// CORS, Throttle. RequireAuth wraps only the write endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.Shortlists != nil {
		mux.HandleFunc("POST /shortlists", cfg.Shortlists.Generate)
		mux.HandleFunc("POST /shortlists/async", cfg.Shortlists.Enqueue)
		mux.HandleFunc("GET /jobs/{jobId}/shortlist", cfg.Shortlists.Get)
	}

	if cfg.Writes != nil && cfg.Validator != nil {
		requireAuth := middleware.RequireAuth(cfg.Validator, cfg.Metrics)
		mux.Handle("POST /proposals", requireAuth(http.HandlerFunc(cfg.Writes.CreateProposal)))
		mux.Handle("POST /messages", requireAuth(http.HandlerFunc(cfg.Writes.SendMessage)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeCodedError(w, r, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"service": ServiceName})
	})

	var handler http.Handler = mux
	if cfg.Throttle != nil {
		handler = middleware.Throttle(cfg.Throttle, middleware.IPKeyFunc(), cfg.Metrics)(handler)
	}
	handler = middleware.CORS(cfg.CORS)(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(ServiceName)(handler)
	}
	return middleware.RequestID(handler)
}
