package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/onnwee/freelamatch/internal/api"
	"github.com/onnwee/freelamatch/internal/app"
	"github.com/onnwee/freelamatch/internal/auth"
	"github.com/onnwee/freelamatch/internal/config"
	"github.com/onnwee/freelamatch/internal/guard"
	"github.com/onnwee/freelamatch/internal/jobs"
	"github.com/onnwee/freelamatch/internal/middleware"
	"github.com/onnwee/freelamatch/internal/ratelimit"
	"github.com/onnwee/freelamatch/internal/shortlist"
	"github.com/onnwee/freelamatch/internal/trigger"
)

// throttleCleanupInterval is how often idle per-IP limiters are evicted.
const throttleCleanupInterval = time.Minute

// services is the assembled application.
type services struct {
	handler   http.Handler
	worker    *trigger.Worker
	scheduler *trigger.Scheduler
	throttle  *middleware.IPThrottle
}

// metricsRegisterer is implemented by every package Metrics type.
type metricsRegisterer interface {
	Register(reg prometheus.Registerer) error
}

// newServices builds the pipeline, quotas, triggers and HTTP handler over b.
// Every collector is registered on reg.
func newServices(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry, b *app.Backends) (*services, error) {
	httpMetrics := middleware.NewMetrics()
	shortlistMetrics := shortlist.NewMetrics()
	limitMetrics := ratelimit.NewMetrics()
	jobMetrics := jobs.NewMetrics()

	for _, r := range []metricsRegisterer{httpMetrics, shortlistMetrics, limitMetrics, jobMetrics} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}

	pipeline := app.NewPipeline(cfg, b, logger, shortlistMetrics)

	limiter := ratelimit.NewLimiter(b.Counters,
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(limitMetrics),
	)

	worker := trigger.NewWorker(trigger.WorkerConfig{
		JobTimeout: 3 * cfg.RetrievalTimeout,
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, b.Queue, pipeline)

	var scheduler *trigger.Scheduler
	if cfg.RefreshSchedule != "" {
		var err error
		scheduler, err = trigger.NewScheduler(trigger.SchedulerConfig{
			Spec:       cfg.RefreshSchedule,
			Logger:     logger,
			JobMetrics: jobMetrics,
		}, b.Jobs, b.Queue)
		if err != nil {
			return nil, err
		}
	}

	throttle := middleware.NewIPThrottle(middleware.ThrottleConfig{
		RequestsPerSecond: cfg.IPRatePerSecond,
		Burst:             cfg.IPBurst,
	})

	var cors middleware.CORSConfig
	if len(cfg.CORSOrigins) > 0 {
		cors = middleware.DefaultCORSConfig(cfg.CORSOrigins)
	}

	handler := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Shortlists: api.NewShortlistHandlers(pipeline, b.Queue),
		Writes:     api.NewWriteHandlers(guard.New(limiter), b.Writes),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:    b.DBChecker,
			RedisChecker: b.RedisChecker,
		}),
		Validator:      auth.NewJWTService(cfg.JWTSecret, auth.WithPreviousSecret(cfg.JWTPreviousSecret)),
		Metrics:        httpMetrics,
		Gatherer:       reg,
		Throttle:       throttle,
		CORS:           cors,
		TracingEnabled: cfg.TracingEnabled,
	})

	return &services{
		handler:   handler,
		worker:    worker,
		scheduler: scheduler,
		throttle:  throttle,
	}, nil
}

// start launches the background components. They stop when ctx is done or
// stop is called.
func (s *services) start(ctx context.Context) error {
	s.worker.Start(ctx)
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			s.worker.Stop()
			return err
		}
	}
	go func() {
		ticker := time.NewTicker(throttleCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.throttle.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// stop halts the scheduler first so no new work is queued, then drains the worker.
func (s *services) stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.worker.Stop()
}
