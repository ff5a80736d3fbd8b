// Package app connects the storage backends shared by the API server and
// the operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/freelamatch/internal/config"
	"github.com/onnwee/freelamatch/internal/health"
	"github.com/onnwee/freelamatch/internal/ratelimit"
	"github.com/onnwee/freelamatch/internal/shortlist"
	"github.com/onnwee/freelamatch/internal/trigger"
	"github.com/onnwee/freelamatch/internal/writes"
)

// LocalQueueSize bounds the in-process queue used when Redis is not configured.
const LocalQueueSize = 256

// HealthChecker is implemented by the health package checkers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backends are the storage dependencies behind the services.
type Backends struct {
	Jobs     shortlist.JobRepository
	Profiles shortlist.ProfileRepository
	Searcher shortlist.SimilaritySearcher
	Entries  shortlist.EntryStore
	Counters ratelimit.CounterStore
	Writes   writes.Store
	Queue    trigger.Queue

	// DBChecker and RedisChecker are nil when the dependency is absent.
	DBChecker    HealthChecker
	RedisChecker HealthChecker

	closers []func() error
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("failed to close backend", "error", err)
		}
	}
}

// Connect opens Postgres and, when configured, Redis, and selects the rate
// limit counter store and the shortlist queue from cfg.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Backends{
		Jobs:      shortlist.NewPostgresJobRepository(db),
		Profiles:  shortlist.NewPostgresProfileRepository(db),
		Searcher:  shortlist.NewPgvectorSearcher(db),
		Entries:   shortlist.NewPostgresEntryStore(db, logger),
		Writes:    writes.NewPostgresStore(db),
		DBChecker: health.NewDBChecker(db),
		closers:   []func() error{db.Close},
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closers = append(b.closers, rdb.Close)
		b.RedisChecker = health.NewRedisChecker(rdb)
	}

	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		if rdb == nil {
			b.Close()
			return nil, config.ErrMissingRedisURL
		}
		b.Counters = ratelimit.NewRedisStore(rdb)
	case config.BackendPostgres:
		b.Counters = ratelimit.NewPostgresStore(db)
	default:
		logger.Warn("using in-memory rate limit counters; quotas reset on restart and are not shared between instances")
		b.Counters = ratelimit.NewMemoryStore()
	}

	if rdb != nil {
		b.Queue = trigger.NewRedisQueue(rdb, cfg.QueueName)
	} else {
		logger.Warn("redis not configured; shortlist requests are queued in process")
		b.Queue = trigger.NewChanQueue(LocalQueueSize)
	}

	return b, nil
}

// NewPipeline builds the shortlist pipeline over b with the tunables from cfg.
func NewPipeline(cfg *config.Config, b *Backends, logger *slog.Logger, metrics *shortlist.Metrics) *shortlist.Pipeline {
	threshold := cfg.MatchThreshold
	return shortlist.NewPipeline(b.Jobs, b.Profiles, b.Searcher, b.Entries, shortlist.Config{
		TopK:             cfg.ShortlistTopK,
		MatchThreshold:   &threshold,
		MatchCount:       cfg.MatchCount,
		RetrievalTimeout: cfg.RetrievalTimeout,
		ScoreConcurrency: cfg.ScoreConcurrency,
		Logger:           logger,
		Metrics:          metrics,
	})
}
