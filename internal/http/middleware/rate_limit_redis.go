package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and starts its expiry on
// the first hit. It returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

var errNoRedisClient = errors.New("rate limit: redis client not configured")

// RedisFixedWindowLimiter shares one counter per key across API replicas.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisFixedWindowLimiter) counterKey(key string) string {
	if key == "" {
		key = "unknown"
	}
	return l.prefix + ":" + key
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if l.client == nil {
		return Decision{}, errNoRedisClient
	}
	window = max(window.Truncate(time.Millisecond), time.Second)

	reply, err := fixedWindowScript.Run(ctx, l.client, []string{l.counterKey(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: want 2 values, got %d", len(reply))
	}
	return fixedWindowDecision(reply[0], time.Duration(reply[1])*time.Millisecond, limit, window, l.now()), nil
}

// fixedWindowDecision turns a window counter into a Decision. A missing or
// negative ttl is treated as a full window.
func fixedWindowDecision(count int64, ttl time.Duration, limit int, window time.Duration, now time.Time) Decision {
	if ttl <= 0 {
		ttl = window
	}
	d := Decision{
		Allowed:   count <= int64(limit),
		Remaining: int(max(int64(limit)-count, 0)),
		ResetAt:   now.Add(ttl),
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d
}
