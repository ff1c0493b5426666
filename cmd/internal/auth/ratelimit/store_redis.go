package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// takeScript mirrors bucket.take. State is a hash {tokens, last} in unix ms;
// now is passed in so every instance agrees on the caller's clock.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

if now - last >= interval then
  local periods = math.floor((now - last) / interval)
  tokens = math.min(capacity, tokens + periods * refill)
  last = last + periods * interval
end

local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return allowed
`)

// DefaultRedisPrefix namespaces bucket keys.
const DefaultRedisPrefix = "sessiond:ratelimit"

// RedisStore shares buckets across instances through one Lua script per take.
// Redis errors are returned to the caller; the limiter does not fail open.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("ratelimit: nil redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Take(ctx context.Context, key string, p Policy, now time.Time) (bool, error) {
	n, err := takeScript.Run(ctx, s.client,
		[]string{s.prefix + ":" + key},
		p.Capacity,
		p.RefillTokens,
		p.Interval.Milliseconds(),
		now.UnixMilli(),
		p.idleTTL().Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis take: %w", err)
	}
	return n == 1, nil
}
