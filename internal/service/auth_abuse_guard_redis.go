package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisAuthAbuseBumpScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local base_ms = tonumber(ARGV[2])
local multiplier = tonumber(ARGV[3])
local max_ms = tonumber(ARGV[4])
local reset_ms = tonumber(ARGV[5])
local free_attempts = tonumber(ARGV[6])

local key = KEYS[1]
local fail_count = tonumber(redis.call("HGET", key, "fail_count") or "0")
local last_failure_ms = tonumber(redis.call("HGET", key, "last_failure_ms") or "0")

if last_failure_ms == 0 or (now_ms - last_failure_ms) > reset_ms then
  fail_count = 0
end

fail_count = fail_count + 1
local delay = 0
if fail_count > free_attempts then
  delay = math.floor(base_ms * (multiplier ^ (fail_count - free_attempts - 1)))
end
if delay > max_ms then
  delay = max_ms
end

redis.call("HSET", key, "fail_count", tostring(fail_count), "last_failure_ms", tostring(now_ms), "cooldown_until_ms", tostring(now_ms + delay))
redis.call("PEXPIRE", key, reset_ms + delay + 60000)
return delay
`)

// RedisAuthAbuseGuard shares failure counters across replicas. Emails are
// hashed before they become part of a key.
type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
	now    func() time.Time
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{
		client: client,
		prefix: prefix,
		policy: normalizeAuthAbusePolicy(policy),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *RedisAuthAbuseGuard) Backend() string { return "redis" }

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, identity string) (time.Duration, error) {
	values, err := g.client.HMGet(ctx, g.stateKey(identity), "last_failure_ms", "cooldown_until_ms").Result()
	if err != nil {
		return 0, err
	}
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return 0, nil
	}
	lastFailureMS, err := parseAuthAbuseRedisInt64(values[0])
	if err != nil {
		return 0, err
	}
	cooldownUntilMS, err := parseAuthAbuseRedisInt64(values[1])
	if err != nil {
		return 0, err
	}
	nowMS := g.now().UnixMilli()
	if nowMS-lastFailureMS > g.policy.ResetWindow.Milliseconds() || cooldownUntilMS <= nowMS {
		return 0, nil
	}
	return time.Duration(cooldownUntilMS-nowMS) * time.Millisecond, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, identity string) (time.Duration, error) {
	result, err := redisAuthAbuseBumpScript.Run(
		ctx,
		g.client,
		[]string{g.stateKey(identity)},
		g.now().UnixMilli(),
		g.policy.BaseDelay.Milliseconds(),
		g.policy.Multiplier,
		g.policy.MaxDelay.Milliseconds(),
		g.policy.ResetWindow.Milliseconds(),
		g.policy.FreeAttempts,
	).Result()
	if err != nil {
		return 0, err
	}
	delayMS, err := parseAuthAbuseRedisInt64(result)
	if err != nil {
		return 0, err
	}
	return time.Duration(max(delayMS, 0)) * time.Millisecond, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, identity string) error {
	return g.client.Del(ctx, g.stateKey(identity)).Err()
}

func (g *RedisAuthAbuseGuard) stateKey(identity string) string {
	sum := sha256.Sum256([]byte(normalizeAuthIdentity(identity)))
	return fmt.Sprintf("%s:signin:%s", g.prefix, hex.EncodeToString(sum[:]))
}

// HMGET yields strings, EVAL yields integers.
func parseAuthAbuseRedisInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis response overflows int64")
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
