// Package resilience provides the per-provider rate limiter and circuit breaker
// that guard every outbound inference call.
package resilience

import (
	"sync"
	"time"

	"github.com/keelwise/keel/internal/keelerrors"
)

// RateLimiter is a fixed-window point budget. Consume never blocks: once the budget
// for the current window is spent it rejects until the window rolls over.
type RateLimiter struct {
	points   int
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	used  int
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock overrides the time source (tests).
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter creates a limiter allowing points calls per duration for each key.
func NewRateLimiter(points int, duration time.Duration, opts ...LimiterOption) *RateLimiter {
	rl := &RateLimiter{
		points:   points,
		duration: duration,
		now:      time.Now,
		windows:  make(map[string]*window),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Consume spends one point for key or returns keelerrors.ErrRateLimited.
func (rl *RateLimiter) Consume(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.current(key, rl.now())
	if w.used >= rl.points {
		return keelerrors.NewRateLimitedError(key)
	}

	w.used++

	return nil
}

// Remaining returns the points left for key in the current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.current(key, rl.now())

	return rl.points - w.used
}

// Points returns the configured budget.
func (rl *RateLimiter) Points() int {
	return rl.points
}

// current returns the live window for key, starting a new one when the old window has elapsed.
// Caller must hold mu.
func (rl *RateLimiter) current(key string, now time.Time) *window {
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.duration {
		w = &window{start: now}
		rl.windows[key] = w
	}

	return w
}
