package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments a counter unless it already reached the limit.
// KEYS[1] counter key, ARGV[1] limit, ARGV[2] window in ms.
// Returns {allowed, count, pttl}.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
    ttl = tonumber(ARGV[2])
  end
  return {0, current, ttl}
end
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {1, count, ttl}
`)

// RedisLimiter shares fixed-window counters between instances through Redis.
// Windows expire through key TTLs, so no sweep is needed.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing counters under prefix
func NewRedisLimiter(client redis.Scripter, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "kafedra:ratelimit:"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

// Check records one request against key. When Redis is unreachable the
// returned result allows the request and the error reports why.
func (l *RedisLimiter) Check(ctx context.Context, key string, cfg RateLimitConfig) (RateLimitResult, error) {
	now := l.now()
	windowMs := cfg.Window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, cfg.MaxRequests, windowMs).Int64Slice()
	if err != nil {
		return RateLimitResult{
			Success:   true,
			Remaining: cfg.MaxRequests,
			ResetTime: now.Add(cfg.Window),
		}, fmt.Errorf("redis rate limit check: %w", err)
	}
	if len(res) != 3 {
		return RateLimitResult{Success: true, Remaining: cfg.MaxRequests, ResetTime: now.Add(cfg.Window)},
			fmt.Errorf("redis rate limit check: unexpected reply length %d", len(res))
	}

	allowed, count, ttl := res[0] == 1, int(res[1]), time.Duration(res[2])*time.Millisecond
	result := RateLimitResult{
		Success:   allowed,
		ResetTime: now.Add(ttl),
	}
	if allowed {
		result.Remaining = nonNegative(cfg.MaxRequests - count)
	}
	return result, nil
}
