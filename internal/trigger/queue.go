// Package trigger runs shortlist generation outside the request path: a
// queue of job ids, a worker draining it, and a cron schedule that refreshes
// every open job.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list holding pending job ids.
const DefaultQueueName = "shortlist:requests"

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("queue empty")

// ErrInvalidJobID is returned by Enqueue for a blank job id.
var ErrInvalidJobID = errors.New("job id is required")

// Queue is a FIFO of job ids awaiting shortlist generation.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Pop blocks up to timeout for the next job id.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// RedisQueue implements Queue with RPUSH and BLPOP on one list.
type RedisQueue struct {
	client redis.Cmdable
	name   string
}

// NewRedisQueue creates a queue on the list name. An empty name uses
// DefaultQueueName.
func NewRedisQueue(client redis.Cmdable, name string) *RedisQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &RedisQueue{client: client, name: name}
}

// Name returns the list key.
func (q *RedisQueue) Name() string {
	return q.name
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ErrInvalidJobID
	}
	if err := q.client.RPush(ctx, q.name, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Pop implements Queue.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop job: %w", err)
	}
	// BLPOP replies with [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	return res[1], nil
}

// Len returns the number of pending job ids.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

// ChanQueue is an in-process Queue backed by a buffered channel.
type ChanQueue struct {
	ch chan string
}

// NewChanQueue creates an in-process queue holding up to size ids.
func NewChanQueue(size int) *ChanQueue {
	if size <= 0 {
		size = 1
	}
	return &ChanQueue{ch: make(chan string, size)}
}

// Enqueue implements Queue. It blocks while the queue is full.
func (q *ChanQueue) Enqueue(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ErrInvalidJobID
	}
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop implements Queue.
func (q *ChanQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, nil
	case <-timer.C:
		return "", ErrQueueEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
