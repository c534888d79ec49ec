package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/segyhp/jaryq-library/internal/clock"
)

type bucket struct {
	tokens    float64
	refreshed time.Time
}

// MemoryLimiter keeps buckets in process memory. Idle buckets are not
// evicted; suitable for a single gateway instance.
type MemoryLimiter struct {
	policy Policy
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryLimiter(policy Policy, clk clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy.normalized(),
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Policy() Policy {
	return l.policy
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.clock.Now()
	capacity := float64(l.policy.BurstCapacity)
	requested := float64(l.policy.Requested)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, refreshed: now}
		l.buckets[key] = b
	}

	elapsed := math.Max(0, now.Sub(b.refreshed).Seconds())
	b.tokens = math.Min(capacity, b.tokens+elapsed*l.policy.ReplenishRate)
	b.refreshed = now

	allowed := b.tokens >= requested
	if allowed {
		b.tokens -= requested
	}

	return Result{Allowed: allowed, Remaining: int64(math.Floor(b.tokens))}, nil
}
