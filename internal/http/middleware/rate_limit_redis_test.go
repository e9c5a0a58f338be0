package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiterForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisFixedWindowLimiter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		m.Close()
	})
	return m, client, NewRedisFixedWindowLimiter(client, "rl_test")
}

func TestRedisFixedWindowLimiterAllowDenyAndFallbackKey(t *testing.T) {
	_, _, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	d1, err := limiter.Allow(ctx, "", 1, time.Second)
	if err != nil {
		t.Fatalf("allow first request: %v", err)
	}
	if !d1.Allowed {
		t.Fatalf("expected first request to be allowed: %+v", d1)
	}

	d2, err := limiter.Allow(ctx, "", 1, time.Second)
	if err != nil {
		t.Fatalf("allow second request: %v", err)
	}
	if d2.Allowed {
		t.Fatalf("expected second request denied: %+v", d2)
	}
	if d2.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", d2.RetryAfter)
	}
}

func TestRedisFixedWindowLimiterUsesPrefixAndWindowExpiry(t *testing.T) {
	m, _, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "auth:10.0.0.1", 2, 10*time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("unexpected first decision: %+v", d)
	}
	if !m.Exists("rl_test:auth:10.0.0.1") {
		t.Fatal("expected prefixed counter key")
	}
	if ttl := m.TTL("rl_test:auth:10.0.0.1"); ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("unexpected key ttl %v", ttl)
	}

	m.FastForward(11 * time.Second)
	d, err = limiter.Allow(ctx, "auth:10.0.0.1", 2, 10*time.Second)
	if err != nil {
		t.Fatalf("allow after expiry: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected fresh window after expiry, got %+v", d)
	}
}

func TestRedisFixedWindowLimiterBackendAndNilClientErrors(t *testing.T) {
	limiter := NewRedisFixedWindowLimiter(nil, "")
	if _, err := limiter.Allow(context.Background(), "k", 1, time.Second); !errors.Is(err, errNoRedisClient) {
		t.Fatalf("expected nil client error, got %v", err)
	}

	badClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 20 * time.Millisecond, ReadTimeout: 20 * time.Millisecond, WriteTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = badClient.Close() })
	limiter = NewRedisFixedWindowLimiter(badClient, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := limiter.Allow(ctx, "k", 1, time.Second); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestFixedWindowDecision(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		name      string
		count     int64
		ttl       time.Duration
		allowed   bool
		remaining int
		retry     time.Duration
	}{
		{name: "under limit", count: 1, ttl: 30 * time.Second, allowed: true, remaining: 2},
		{name: "at limit", count: 3, ttl: 30 * time.Second, allowed: true, remaining: 0},
		{name: "over limit", count: 4, ttl: 5 * time.Second, allowed: false, remaining: 0, retry: 5 * time.Second},
		{name: "missing ttl", count: 9, ttl: -time.Millisecond, allowed: false, remaining: 0, retry: time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := fixedWindowDecision(tc.count, tc.ttl, 3, time.Minute, now)
			if d.Allowed != tc.allowed || d.Remaining != tc.remaining || d.RetryAfter != tc.retry {
				t.Fatalf("unexpected decision: %+v", d)
			}
			if !d.ResetAt.After(now) {
				t.Fatalf("expected reset after now, got %v", d.ResetAt)
			}
		})
	}
}
