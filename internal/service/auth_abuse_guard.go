package service

import (
	"context"
	"math"
	"sync"
	"time"
)

// AuthAbusePolicy shapes the per-account signin backoff. The first
// FreeAttempts failures inside ResetWindow cost nothing; each later one
// waits BaseDelay*Multiplier^n, capped at MaxDelay.
type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

// AuthAbuseGuard tracks failed signins per normalized email.
type AuthAbuseGuard interface {
	Backend() string
	Check(ctx context.Context, identity string) (time.Duration, error)
	RegisterFailure(ctx context.Context, identity string) (time.Duration, error)
	Reset(ctx context.Context, identity string) error
}

type NoopAuthAbuseGuard struct{}

func NewNoopAuthAbuseGuard() *NoopAuthAbuseGuard {
	return &NoopAuthAbuseGuard{}
}

func (g *NoopAuthAbuseGuard) Backend() string { return "noop" }

func (g *NoopAuthAbuseGuard) Check(context.Context, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) RegisterFailure(context.Context, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) Reset(context.Context, string) error {
	return nil
}

type authAbuseEntry struct {
	failCount     int
	lastFailureAt time.Time
	cooldownUntil time.Time
}

type InMemoryAuthAbuseGuard struct {
	mu     sync.Mutex
	policy AuthAbusePolicy
	data   map[string]authAbuseEntry
	now    func() time.Time
}

func NewInMemoryAuthAbuseGuard(policy AuthAbusePolicy) *InMemoryAuthAbuseGuard {
	return &InMemoryAuthAbuseGuard{
		policy: normalizeAuthAbusePolicy(policy),
		data:   make(map[string]authAbuseEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *InMemoryAuthAbuseGuard) Backend() string { return "memory" }

func (g *InMemoryAuthAbuseGuard) Check(_ context.Context, identity string) (time.Duration, error) {
	now := g.now()
	key := normalizeAuthIdentity(identity)
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.data[key]
	if !ok {
		return 0, nil
	}
	if now.Sub(entry.lastFailureAt) > g.policy.ResetWindow {
		delete(g.data, key)
		return 0, nil
	}
	if !now.Before(entry.cooldownUntil) {
		return 0, nil
	}
	return entry.cooldownUntil.Sub(now), nil
}

func (g *InMemoryAuthAbuseGuard) RegisterFailure(_ context.Context, identity string) (time.Duration, error) {
	now := g.now()
	key := normalizeAuthIdentity(identity)
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.data[key]
	if entry.lastFailureAt.IsZero() || now.Sub(entry.lastFailureAt) > g.policy.ResetWindow {
		entry.failCount = 0
	}
	entry.failCount++
	entry.lastFailureAt = now
	delay := authAbuseDelay(g.policy, entry.failCount)
	entry.cooldownUntil = now.Add(delay)
	g.data[key] = entry
	return delay, nil
}

func (g *InMemoryAuthAbuseGuard) Reset(_ context.Context, identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.data, normalizeAuthIdentity(identity))
	return nil
}

func authAbuseDelay(policy AuthAbusePolicy, failCount int) time.Duration {
	if failCount <= policy.FreeAttempts {
		return 0
	}
	power := math.Pow(policy.Multiplier, float64(failCount-policy.FreeAttempts-1))
	delay := time.Duration(float64(policy.BaseDelay) * power)
	if delay > policy.MaxDelay || delay < 0 {
		return policy.MaxDelay
	}
	return delay
}

func normalizeAuthIdentity(identity string) string {
	v := normalizeEmail(identity)
	if v == "" {
		return "anonymous"
	}
	return v
}

func normalizeAuthAbusePolicy(policy AuthAbusePolicy) AuthAbusePolicy {
	if policy.FreeAttempts < 0 {
		policy.FreeAttempts = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = 5 * time.Minute
	}
	if policy.ResetWindow <= 0 {
		policy.ResetWindow = 30 * time.Minute
	}
	return policy
}
