package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// InMemoryLimiter keeps counters in process. It is used when no Redis is
// configured and only limits a single replica.
type InMemoryLimiter struct {
	Window time.Duration

	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
	sweepAt time.Time
}

func NewInMemory(w time.Duration) *InMemoryLimiter {
	if w <= 0 {
		w = time.Minute
	}
	return &InMemoryLimiter{Window: w, windows: make(map[string]window), now: time.Now}
}

// WithClock overrides the limiter clock.
func (l *InMemoryLimiter) WithClock(now func() time.Time) *InMemoryLimiter {
	l.now = now
	return l
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(l.Window)}
	}
	w.count++
	l.windows[key] = w

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: w.count <= limit, Remaining: remaining, ResetAt: w.resetAt}, nil
}

// sweep drops expired windows at most once per window length.
func (l *InMemoryLimiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
	l.sweepAt = now.Add(l.Window)
}
