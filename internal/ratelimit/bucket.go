// Package ratelimit implements a persistent token-bucket quota per opaque key.
//
// The bucket arithmetic lives in three places that must agree: Bucket.Take
// (used by MemoryStore), the Lua script in redis.go, and the check_rate_limit
// function created by the migrations. All three refill by whole elapsed
// intervals, cap at the policy maximum and only decrement a positive count.
package ratelimit

import (
	"fmt"
	"time"
)

// Policy describes one token-bucket quota.
// Valid values:
//   - MaxTokens: must be > 0
//   - RefillInterval: must be > 0
//   - RefillAmount: must be > 0
type Policy struct {
	// Name labels the policy in metrics and logs.
	Name string
	// MaxTokens is the bucket capacity and the initial count of a new key.
	MaxTokens int
	// RefillInterval is the length of one refill window.
	RefillInterval time.Duration
	// RefillAmount is the number of tokens added per whole elapsed interval.
	RefillAmount int
}

// Validate checks that the Policy has valid values.
func (p Policy) Validate() error {
	if p.MaxTokens <= 0 {
		return fmt.Errorf("MaxTokens must be > 0 (got %d)", p.MaxTokens)
	}
	if p.RefillInterval <= 0 {
		return fmt.Errorf("RefillInterval must be > 0 (got %s)", p.RefillInterval)
	}
	if p.RefillAmount <= 0 {
		return fmt.Errorf("RefillAmount must be > 0 (got %d)", p.RefillAmount)
	}
	return nil
}

// intervalSeconds returns the refill interval in whole seconds, at least 1.
// The Postgres function takes its interval in seconds.
func (p Policy) intervalSeconds() int {
	s := int(p.RefillInterval / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// Bucket is the persisted state of one key.
type Bucket struct {
	Remaining  int
	RefilledAt time.Time
}

// NewBucket returns a full bucket for p whose refill clock starts at now.
func NewBucket(p Policy, now time.Time) Bucket {
	return Bucket{Remaining: p.MaxTokens, RefilledAt: now}
}

// Refill adds RefillAmount tokens for every whole interval elapsed since
// RefilledAt, capped at MaxTokens. RefilledAt advances by exactly the
// consumed intervals so a partial interval is carried over.
func (b Bucket) Refill(p Policy, now time.Time) Bucket {
	elapsed := now.Sub(b.RefilledAt)
	if elapsed < p.RefillInterval {
		return b
	}
	intervals := int64(elapsed / p.RefillInterval)
	added := intervals * int64(p.RefillAmount)
	remaining := int64(b.Remaining) + added
	if remaining > int64(p.MaxTokens) {
		remaining = int64(p.MaxTokens)
	}
	return Bucket{
		Remaining:  int(remaining),
		RefilledAt: b.RefilledAt.Add(time.Duration(intervals) * p.RefillInterval),
	}
}

// Take refills the bucket and then consumes one token if any is left.
// It returns the new state and the remaining count, or -1 when the
// bucket was empty. An empty bucket is never decremented.
func (b Bucket) Take(p Policy, now time.Time) (Bucket, int) {
	b = b.Refill(p, now)
	if b.Remaining <= 0 {
		return b, -1
	}
	b.Remaining--
	return b, b.Remaining
}
