package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter with the same
// semantics as RedisLimiter. Intended for unit testing and development.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	max    int

	// now is swappable for tests.
	now func() time.Time
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithMemoryWindow overrides the sliding window size.
func WithMemoryWindow(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.window = d }
}

// WithMemoryMax overrides the admitted-request cap per window.
func WithMemoryMax(n int) MemoryOption {
	return func(l *MemoryLimiter) { l.max = n }
}

// WithClock overrides the limiter's clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter creates an in-memory limiter.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		hits:   make(map[string][]time.Time),
		window: DefaultWindow,
		max:    DefaultMax,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.hits[key] = kept
		return Decision{Allowed: false, RetryAfter: l.window}, nil
	}

	l.hits[key] = append(kept, now)
	return Decision{Allowed: true}, nil
}
