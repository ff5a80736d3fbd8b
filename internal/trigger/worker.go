package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/freelamatch/internal/jobs"
	"github.com/onnwee/freelamatch/internal/shortlist"
)

// Generator rebuilds the shortlist of one job.
type Generator interface {
	Generate(ctx context.Context, jobID string) (*shortlist.Result, error)
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// Worker defaults.
const (
	DefaultPollTimeout = 5 * time.Second
	DefaultJobTimeout  = 30 * time.Second
	DefaultConcurrency = 1
	// errorBackoff is the pause after a queue read failure.
	errorBackoff = time.Second
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// PollTimeout is how long one Pop blocks.
	PollTimeout time.Duration
	// JobTimeout bounds a single generation.
	JobTimeout time.Duration
	// Concurrency is the number of consumer goroutines.
	Concurrency int
	// Logger for worker activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// Worker drains a Queue and generates a shortlist for each job id.
// Failed jobs are logged and dropped; there is no internal retry.
type Worker struct {
	config    WorkerConfig
	queue     Queue
	generator Generator

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a worker over queue.
func NewWorker(config WorkerConfig, queue Queue, generator Generator) *Worker {
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Worker{config: config, queue: queue, generator: generator}
}

// Start launches the consumer goroutines and returns immediately.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, w.stopCh)
	}
	w.config.Logger.Info("shortlist worker started", "concurrency", w.config.Concurrency)
}

// Stop signals the consumers to exit and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.config.Logger.Info("shortlist worker stopped")
}

// IsRunning returns whether the worker is consuming.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context, stopCh <-chan struct{}) {
	defer w.wg.Done()

	// Pop observes stop through popCtx.
	popCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-popCtx.Done():
		}
	}()

	for {
		jobID, err := w.queue.Pop(popCtx, w.config.PollTimeout)
		switch {
		case err == nil:
			// A popped id is already off the queue, so it is processed even
			// when Stop raced the pop. In-flight jobs finish against the
			// parent context.
			w.Process(ctx, jobID)
			if popCtx.Err() != nil {
				return
			}
			continue
		case popCtx.Err() != nil:
			return
		case errors.Is(err, ErrQueueEmpty):
			continue
		case err != nil:
			w.config.Logger.Error("failed to read shortlist queue", "error", err)
			if w.config.JobMetrics != nil {
				w.config.JobMetrics.IncJobErrors(jobs.JobTypeShortlistGeneration, jobs.ErrorTypeQueue)
			}
			select {
			case <-time.After(errorBackoff):
			case <-popCtx.Done():
				return
			}
			continue
		}
	}
}

// Process generates the shortlist of jobID and records the outcome.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := w.generator.Generate(ctx, jobID)
	duration := time.Since(start).Seconds()

	status := jobs.StatusSuccess
	if err != nil {
		status = jobs.StatusFailure
	}
	if w.config.JobMetrics != nil {
		w.config.JobMetrics.IncJobsTotal(jobs.JobTypeShortlistGeneration, status)
		w.config.JobMetrics.ObserveJobDuration(jobs.JobTypeShortlistGeneration, duration)
		if err != nil {
			w.config.JobMetrics.IncJobErrors(jobs.JobTypeShortlistGeneration, errorType(err))
		}
	}

	switch {
	case err == nil:
		w.config.Logger.Info("queued shortlist generated",
			"job_id", jobID,
			"count", result.Count,
			"duration_seconds", duration)
	case errors.Is(err, shortlist.ErrJobNotFound), errors.Is(err, shortlist.ErrJobNotEmbedded):
		w.config.Logger.Warn("dropping shortlist request", "job_id", jobID, "reason", err)
	default:
		w.config.Logger.Error("queued shortlist generation failed",
			"job_id", jobID,
			"error", err)
	}
	return err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return jobs.ErrorTypeTimeout
	case errors.Is(err, shortlist.ErrJobNotFound), errors.Is(err, shortlist.ErrJobNotEmbedded):
		return jobs.ErrorTypeNotFound
	case errors.Is(err, shortlist.ErrUpstreamRetrieval):
		return jobs.ErrorTypeUpstream
	case errors.Is(err, shortlist.ErrPersistence):
		return jobs.ErrorTypePersistence
	default:
		return jobs.ErrorTypeOther
	}
}
