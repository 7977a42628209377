package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStorageTimeout signals that a store call exceeded its deadline. Callers
// may retry.
var ErrStorageTimeout = errors.New("db: storage timeout")

// DefaultTimeout bounds a store call when no explicit timeout is configured.
const DefaultTimeout = 5 * time.Second

// WithTimeout derives a context bounded by d (DefaultTimeout when d <= 0).
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Classify rewrites deadline expiry into ErrStorageTimeout and leaves every
// other error untouched.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrStorageTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStorageTimeout, err)
	}
	return err
}

// Bounded runs fn under a store deadline and classifies its error.
func Bounded(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := WithTimeout(ctx, d)
	defer cancel()
	return Classify(fn(ctx))
}
