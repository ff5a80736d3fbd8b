package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/onnwee/freelamatch/internal/jobs"
)

// OpenJobLister lists the jobs whose shortlists are kept fresh.
type OpenJobLister interface {
	ListOpenJobIDs(ctx context.Context) ([]string, error)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Spec is a cron expression or descriptor such as "@every 6h".
	Spec string
	// Timeout bounds one refresh sweep.
	Timeout time.Duration
	// Logger for scheduler activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// DefaultRefreshTimeout bounds one refresh sweep.
const DefaultRefreshTimeout = time.Minute

// Scheduler periodically enqueues every open job for regeneration.
type Scheduler struct {
	config SchedulerConfig
	cron   *cron.Cron
	jobs   OpenJobLister
	queue  Queue
}

// NewScheduler validates the cron expression and creates a stopped scheduler.
func NewScheduler(config SchedulerConfig, lister OpenJobLister, queue Queue) (*Scheduler, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if _, err := cron.ParseStandard(config.Spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", config.Spec, err)
	}
	return &Scheduler{
		config: config,
		cron:   cron.New(),
		jobs:   lister,
		queue:  queue,
	}, nil
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.config.Spec, func() {
		if _, err := s.Refresh(ctx); err != nil {
			s.config.Logger.Error("shortlist refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.config.Logger.Info("shortlist refresh scheduled", "spec", s.config.Spec)
	return nil
}

// Stop stops the cron loop and waits for a running sweep.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.config.Logger.Info("shortlist refresh stopped")
}

// Refresh enqueues every open job once and returns how many were queued.
// It stops at the first enqueue failure.
func (s *Scheduler) Refresh(ctx context.Context) (queued int, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if s.config.JobMetrics == nil {
			return
		}
		status := jobs.StatusSuccess
		if err != nil {
			status = jobs.StatusFailure
			s.config.JobMetrics.IncJobErrors(jobs.JobTypeShortlistRefresh, jobs.ErrorTypeQueue)
		}
		s.config.JobMetrics.IncJobsTotal(jobs.JobTypeShortlistRefresh, status)
		s.config.JobMetrics.ObserveJobDuration(jobs.JobTypeShortlistRefresh, time.Since(start).Seconds())
	}()

	ids, err := s.jobs.ListOpenJobIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open jobs: %w", err)
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			return queued, err
		}
		queued++
	}

	s.config.Logger.Info("shortlist refresh enqueued", "job_count", queued)
	return queued, nil
}
