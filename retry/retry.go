// Package retry holds the bounded waiting primitives used around browser
// interactions: linear-backoff retry, condition polling and ctx-aware sleep.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks a retry or poll that used its whole budget.
var ErrExhausted = errors.New("retry budget exhausted")

// Linear describes attempts spaced by a linearly growing delay: the wait
// after attempt n (1-based) is n*Step.
type Linear struct {
	Attempts int
	Step     time.Duration
	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds or the attempts are used up. The returned
// error wraps both ErrExhausted and the last failure.
func (l Linear) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := l.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if l.OnRetry != nil {
			l.OnRetry(attempt, lastErr)
		}
		if err := Sleep(ctx, time.Duration(attempt)*l.Step); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Poll checks cond up to attempts times, sleeping interval before each
// check. It reports whether cond became true.
func Poll(ctx context.Context, attempts int, interval time.Duration, cond func() bool) (bool, error) {
	for i := 0; i < attempts; i++ {
		if err := Sleep(ctx, interval); err != nil {
			return false, err
		}
		if cond() {
			return true, nil
		}
	}
	return false, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
