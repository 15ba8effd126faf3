package cache

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window request counter. Unlike the teacher's
// per-key bucket map (built for a multi-tenant API gateway), the rebalancer
// runs one adapter per process throttling one exchange's REST budget, so a
// single counter is all binancespot.Adapter.throttle needs.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window}
}

// Allow reports whether a request may proceed under the current window,
// incrementing the counter if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if rl.windowStart.IsZero() || now.Sub(rl.windowStart) > rl.window {
		rl.windowStart = now
		rl.count = 1
		return true
	}

	if rl.count < rl.limit {
		rl.count++
		return true
	}

	return false
}

// Reset clears the current window, allowing the next Allow call through
// immediately regardless of how recently the limit was hit.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.count = 0
	rl.windowStart = time.Time{}
}
