package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// fakeClock is a manually advanced clock for MemoryStore.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore always returns an error.
type failingStore struct {
	calls atomic.Int32
}

func (s *failingStore) Take(ctx context.Context, key string, p Policy) (int, error) {
	s.calls.Add(1)
	return 0, errors.New("connection refused")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLimiter_SixChecksInOneWindow verifies five allowed checks then one limited.
func TestLimiter_SixChecksInOneWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(NewMemoryStoreWithClock(clock.Now), WithLogger(quietLogger()))
	p := Policy{Name: "test", MaxTokens: 5, RefillInterval: 86400 * time.Second, RefillAmount: 5}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := limiter.Check(ctx, "proposal:user:u1", p)
		if res.Limited {
			t.Fatalf("check %d should be allowed", i+1)
		}
		if res.Remaining != 4-i {
			t.Errorf("check %d: expected remaining %d, got %d", i+1, 4-i, res.Remaining)
		}
		clock.Advance(time.Minute)
	}

	res := limiter.Check(ctx, "proposal:user:u1", p)
	if !res.Limited {
		t.Error("6th check should be limited")
	}
	if res.Remaining != 0 {
		t.Errorf("expected remaining 0 when limited, got %d", res.Remaining)
	}
}

// TestLimiter_RefillCatchUp verifies idle intervals are all credited.
func TestLimiter_RefillCatchUp(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(NewMemoryStoreWithClock(clock.Now), WithLogger(quietLogger()))
	p := Policy{Name: "test", MaxTokens: 10, RefillInterval: time.Minute, RefillAmount: 3}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		limiter.Check(ctx, "k", p)
	}
	if res := limiter.Check(ctx, "k", p); !res.Limited {
		t.Fatal("bucket should be drained")
	}

	clock.Advance(2*time.Minute + time.Second)

	// 2 intervals * 3 tokens = 6, one consumed by this check.
	res := limiter.Check(ctx, "k", p)
	if res.Limited {
		t.Fatal("check after refill should be allowed")
	}
	if res.Remaining != 5 {
		t.Errorf("expected remaining 5 after catching up two intervals, got %d", res.Remaining)
	}
}

func TestLimiter_RefillCappedAtMax(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(NewMemoryStoreWithClock(clock.Now), WithLogger(quietLogger()))
	p := ProposalPolicy()
	ctx := context.Background()

	limiter.Check(ctx, "k", p)
	clock.Advance(30 * 24 * time.Hour)

	res := limiter.Check(ctx, "k", p)
	if res.Remaining != p.MaxTokens-1 {
		t.Errorf("expected remaining %d, got %d", p.MaxTokens-1, res.Remaining)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), WithLogger(quietLogger()))
	p := Policy{Name: "test", MaxTokens: 1, RefillInterval: time.Hour, RefillAmount: 1}
	ctx := context.Background()

	if res := limiter.Check(ctx, "a", p); res.Limited {
		t.Error("first check for a should be allowed")
	}
	if res := limiter.Check(ctx, "a", p); !res.Limited {
		t.Error("second check for a should be limited")
	}
	if res := limiter.Check(ctx, "b", p); res.Limited {
		t.Error("b must not share a's bucket")
	}
}

// TestLimiter_Concurrent verifies no more than MaxTokens checks pass in one window.
func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), WithLogger(quietLogger()))
	p := Policy{Name: "test", MaxTokens: 10, RefillInterval: time.Hour, RefillAmount: 10}
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := limiter.Check(ctx, "shared", p); !res.Limited {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 10 {
		t.Errorf("expected exactly 10 allowed checks, got %d", got)
	}
}

// TestLimiter_FailOpen verifies store errors never limit the caller.
func TestLimiter_FailOpen(t *testing.T) {
	store := &failingStore{}
	metrics := NewMetrics()
	limiter := NewLimiter(store, WithLogger(quietLogger()), WithMetrics(metrics))

	res := limiter.Check(context.Background(), "proposal:user:u1", ProposalPolicy())
	if res.Limited {
		t.Error("store failure must fail open")
	}
	if !res.FailedOpen {
		t.Error("expected FailedOpen to be set")
	}
	if store.calls.Load() != 1 {
		t.Errorf("expected one store call, got %d", store.calls.Load())
	}
	if got := counterValue(t, metrics.storeErrors); got != 1 {
		t.Errorf("expected 1 store error, got %f", got)
	}
	if got := counterVecValue(t, metrics.checks, PolicyNameProposal, ResultFailedOpen); got != 1 {
		t.Errorf("expected 1 failed_open check, got %f", got)
	}
}

func TestLimiter_NilStoreFailsOpen(t *testing.T) {
	limiter := NewLimiter(nil, WithLogger(quietLogger()))
	if res := limiter.Check(context.Background(), "k", MessagePolicy()); res.Limited || !res.FailedOpen {
		t.Errorf("nil store should fail open, got %+v", res)
	}
}

func TestLimiter_InvalidPolicyFailsOpen(t *testing.T) {
	store := &failingStore{}
	limiter := NewLimiter(store, WithLogger(quietLogger()))

	res := limiter.Check(context.Background(), "k", Policy{Name: "broken"})
	if res.Limited || !res.FailedOpen {
		t.Errorf("invalid policy should fail open, got %+v", res)
	}
	if store.calls.Load() != 0 {
		t.Error("invalid policy must not reach the store")
	}
}

func TestLimiter_CancelledContextFailsOpen(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if res := limiter.Check(ctx, "k", MessagePolicy()); res.Limited || !res.FailedOpen {
		t.Errorf("cancelled context should fail open, got %+v", res)
	}
}

func TestLimiter_Metrics(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	limiter := NewLimiter(NewMemoryStore(), WithLogger(quietLogger()), WithMetrics(metrics))
	p := Policy{Name: PolicyNameMessage, MaxTokens: 2, RefillInterval: time.Minute, RefillAmount: 2}
	for i := 0; i < 3; i++ {
		limiter.Check(context.Background(), "message:thread:t1:user:u1", p)
	}

	if got := counterVecValue(t, metrics.checks, PolicyNameMessage, ResultAllowed); got != 2 {
		t.Errorf("expected 2 allowed, got %f", got)
	}
	if got := counterVecValue(t, metrics.checks, PolicyNameMessage, ResultLimited); got != 1 {
		t.Errorf("expected 1 limited, got %f", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == MetricChecksTotal {
			found = true
		}
	}
	if !found {
		t.Errorf("metric %s not gathered", MetricChecksTotal)
	}

	if err := NewMetrics().Register(reg); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	return counterValue(t, c)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}
