package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// bucket is a single principal's token bucket state.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastCheck  time.Time
}

// RateLimiter implements a continuous-refill token bucket per principal.
// Tokens refill proportionally to elapsed time on every check, and a
// single request either consumes a token or is rejected outright — there
// is no queuing.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	defaultCapacity int
	perKeyCapacity  map[string]int
	windowSeconds   float64

	denyUnknownPrincipal bool
}

// Config configures the rate limiter's defaults and per-key overrides.
type Config struct {
	DefaultCapacity      int
	PerKeyCapacity       map[string]int
	WindowSeconds        float64
	DenyUnknownPrincipal bool
}

// NewRateLimiter creates a token-bucket rate limiter from cfg.
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 1
	}
	return &RateLimiter{
		buckets:              make(map[string]*bucket),
		defaultCapacity:      cfg.DefaultCapacity,
		perKeyCapacity:       cfg.PerKeyCapacity,
		windowSeconds:        cfg.WindowSeconds,
		denyUnknownPrincipal: cfg.DenyUnknownPrincipal,
	}
}

func (rl *RateLimiter) capacityFor(key string) (int, bool) {
	if cap, ok := rl.perKeyCapacity[key]; ok {
		return cap, true
	}
	if rl.defaultCapacity > 0 {
		return rl.defaultCapacity, true
	}
	return 0, false
}

// Check refills key's bucket for elapsed time and tries to consume one
// token. Returns a GuardResult indicating admission.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if key == "" && rl.denyUnknownPrincipal {
		return domain.GuardResult{Allowed: false, Reason: "unknown principal denied by policy", Guard: "rate_limiter"}
	}

	capacity, known := rl.capacityFor(key)
	if !known {
		if rl.denyUnknownPrincipal {
			return domain.GuardResult{Allowed: false, Reason: "unknown principal denied by policy", Guard: "rate_limiter"}
		}
		return domain.GuardResult{Allowed: true}
	}

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(capacity),
			capacity:   float64(capacity),
			refillRate: float64(capacity) / rl.windowSeconds,
			lastCheck:  now,
		}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.lastCheck = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	if b.tokens < 1 {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d/%.0fs", capacity, rl.windowSeconds),
			Guard:   "rate_limiter",
		}
	}

	b.tokens--
	return domain.GuardResult{Allowed: true}
}
