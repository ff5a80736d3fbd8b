package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript refills and consumes one token in a single server-side step.
// Time comes from the Redis server so every API instance shares one clock.
//
// KEYS[1] bucket hash
// ARGV[1] max tokens, ARGV[2] refill interval (ms), ARGV[3] refill amount
// Returns the remaining tokens, or -1 when limited.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local max_tokens = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local amount = tonumber(ARGV[3])

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call('HMGET', key, 'tokens', 'refilled_at')
local tokens = tonumber(state[1])
local refilled_at = tonumber(state[2])
if tokens == nil or refilled_at == nil then
  tokens = max_tokens
  refilled_at = now
end

local elapsed = now - refilled_at
if elapsed >= interval then
  local intervals = math.floor(elapsed / interval)
  tokens = math.min(max_tokens, tokens + intervals * amount)
  refilled_at = refilled_at + intervals * interval
end

if tokens <= 0 then
  redis.call('HSET', key, 'tokens', tokens, 'refilled_at', refilled_at)
  return -1
end

tokens = tokens - 1
redis.call('HSET', key, 'tokens', tokens, 'refilled_at', refilled_at)
return tokens
`)

// DefaultRedisKeyPrefix namespaces bucket hashes in a shared Redis.
const DefaultRedisKeyPrefix = "ratelimit:"

// RedisStore implements CounterStore with a Lua script.
// Keys carry no TTL; abandoned buckets stay until evicted by Redis policy.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisKeyPrefix,
	}
}

// Take implements CounterStore.
func (s *RedisStore) Take(ctx context.Context, key string, p Policy) (int, error) {
	remaining, err := takeScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		p.MaxTokens,
		p.RefillInterval.Milliseconds(),
		p.RefillAmount,
	).Int()
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
