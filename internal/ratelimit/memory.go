package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements CounterStore with an in-process map.
// Counters are not shared between processes, so it is meant for a single
// instance in development and for tests. Thread-safe for concurrent access.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]Bucket
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]Bucket),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates an in-memory store that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

// Take implements CounterStore.
func (s *MemoryStore) Take(ctx context.Context, key string, p Policy) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		b = NewBucket(p, now)
	}
	b, remaining := b.Take(p, now)
	s.buckets[key] = b
	return remaining, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
