package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/freelamatch/internal/tracing"
)

// ErrStoreUnavailable wraps every counter store failure. Limiter.Check
// resolves it by failing open, so it never reaches Limiter callers.
var ErrStoreUnavailable = errors.New("rate limit counter store unavailable")

// CounterStore performs the refill-then-take step for one key as a single
// atomic operation at the storage boundary.
type CounterStore interface {
	// Take returns the tokens remaining after consuming one, or a negative
	// value when the key is limited. A new key starts at p.MaxTokens.
	Take(ctx context.Context, key string, p Policy) (int, error)
}

// Result is the caller-visible outcome of a check.
type Result struct {
	Limited   bool
	Remaining int
	// FailedOpen is set when the store could not be reached and the request
	// was let through without consuming a token.
	FailedOpen bool
}

// Limiter checks keys against policies using a CounterStore.
type Limiter struct {
	store   CounterStore
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// NewLimiter creates a Limiter backed by store.
func NewLimiter(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one token for key under p.
//
// Store errors and invalid policies fail open: the result is not limited
// and FailedOpen is set. An unreachable counter store must not block
// legitimate users.
func (l *Limiter) Check(ctx context.Context, key string, p Policy) Result {
	ctx, endSpan := tracing.StartSpan(ctx, "ratelimit.check",
		tracing.AttrRateLimit.String(key),
		tracing.AttrRateLimitPolicy.String(p.Name),
	)
	result := l.check(ctx, key, p)
	outcome := ResultAllowed
	switch {
	case result.FailedOpen:
		outcome = ResultFailedOpen
	case result.Limited:
		outcome = ResultLimited
	}
	tracing.SetAttributes(ctx, tracing.AttrRateLimitResult.String(outcome))
	endSpan(nil)
	return result
}

func (l *Limiter) check(ctx context.Context, key string, p Policy) Result {
	remaining, err := l.take(ctx, key, p)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit check failed open",
			slog.String("key", key),
			slog.String("policy", p.Name),
			slog.String("error", err.Error()),
		)
		if l.metrics != nil {
			l.metrics.IncStoreErrors()
			l.metrics.IncChecks(p.Name, ResultFailedOpen)
		}
		return Result{Limited: false, Remaining: 0, FailedOpen: true}
	}

	if remaining < 0 {
		if l.metrics != nil {
			l.metrics.IncChecks(p.Name, ResultLimited)
		}
		l.logger.DebugContext(ctx, "rate limited",
			slog.String("key", key),
			slog.String("policy", p.Name),
		)
		return Result{Limited: true, Remaining: 0}
	}

	if l.metrics != nil {
		l.metrics.IncChecks(p.Name, ResultAllowed)
	}
	return Result{Limited: false, Remaining: remaining}
}

func (l *Limiter) take(ctx context.Context, key string, p Policy) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid policy %q: %w", p.Name, err)
	}
	if l.store == nil {
		return 0, ErrStoreUnavailable
	}
	remaining, err := l.store.Take(ctx, key, p)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return remaining, nil
}
