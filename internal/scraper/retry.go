package scraper

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 30 * time.Second

// permanentError marks a failure that retrying cannot fix (404, canceled
// context, malformed request).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// RetryWithBackoff calls fn until it succeeds, returns a permanent error,
// or maxRetries retries have been spent. Delay doubles from initialDelay
// with ±25% jitter, capped at 30s.
//
//	attempt 0: immediate
//	attempt 1: ~initialDelay
//	attempt 2: ~2*initialDelay
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}

		if attempt == maxRetries {
			break
		}

		if err := Sleep(ctx, backoff(initialDelay, attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func backoff(initial time.Duration, attempt int) time.Duration {
	delay := min(initial<<attempt, maxBackoff)
	if delay <= 0 {
		return 0
	}
	half := int64(delay) / 2
	if half == 0 {
		return delay
	}
	return delay - delay/4 + time.Duration(rand.Int64N(half))
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
