// Package ratelimit implements fixed-window request counters used to throttle
// the credential endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLimited signals the caller exhausted its window.
var ErrLimited = errors.New("ratelimit: too many requests")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// LimitedError carries the time after which the caller may retry.
type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrLimited, e.RetryAfter.Round(time.Second))
}

func (e *LimitedError) Unwrap() error { return ErrLimited }

// Check consumes one hit for key and returns a *LimitedError once the limit
// is exceeded. A non-positive limit disables the check.
func Check(ctx context.Context, l Limiter, key string, limit int, now time.Time) error {
	if l == nil || limit <= 0 {
		return nil
	}
	d, err := l.Allow(ctx, key, limit)
	if err != nil {
		return fmt.Errorf("ratelimit: allow: %w", err)
	}
	if d.Allowed {
		return nil
	}
	retry := d.ResetAt.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return &LimitedError{RetryAfter: retry}
}
