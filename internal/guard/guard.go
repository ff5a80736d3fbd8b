// Package guard throttles proposal and message writes before they reach storage.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/freelamatch/internal/ratelimit"
)

// ErrRateLimited is returned when a write exceeded its quota.
var ErrRateLimited = errors.New("rate limited")

// RateLimitedError carries the key that was limited and the remaining hint.
type RateLimitedError struct {
	Key       string
	Policy    ratelimit.Policy
	Remaining int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s (remaining %d)", e.Key, e.Remaining)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// Checker is the subset of ratelimit.Limiter the guard needs.
type Checker interface {
	Check(ctx context.Context, key string, p ratelimit.Policy) ratelimit.Result
}

// ProposalKey builds the counter key for proposals submitted by userID.
func ProposalKey(userID string) string {
	return "proposal:user:" + userID
}

// MessageKey builds the counter key for messages sent by userID in threadID.
func MessageKey(threadID, userID string) string {
	return "message:thread:" + threadID + ":user:" + userID
}

// Guard applies the proposal and message policies.
type Guard struct {
	checker  Checker
	proposal ratelimit.Policy
	message  ratelimit.Policy
}

// New creates a Guard with the default proposal and message policies.
func New(checker Checker) *Guard {
	return &Guard{
		checker:  checker,
		proposal: ratelimit.ProposalPolicy(),
		message:  ratelimit.MessagePolicy(),
	}
}

// AllowProposal consumes one proposal token for userID.
// It returns a *RateLimitedError when the daily quota is spent.
func (g *Guard) AllowProposal(ctx context.Context, userID string) error {
	return g.allow(ctx, ProposalKey(userID), g.proposal)
}

// AllowMessage consumes one message token for userID in threadID.
func (g *Guard) AllowMessage(ctx context.Context, threadID, userID string) error {
	return g.allow(ctx, MessageKey(threadID, userID), g.message)
}

func (g *Guard) allow(ctx context.Context, key string, p ratelimit.Policy) error {
	res := g.checker.Check(ctx, key, p)
	if res.Limited {
		return &RateLimitedError{Key: key, Policy: p, Remaining: res.Remaining}
	}
	return nil
}
