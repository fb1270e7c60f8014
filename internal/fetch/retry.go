package fetch

import (
	"context"
	"time"
)

// Default retry configuration values.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Retry runs fn up to maxRetries+1 times with exponential backoff between
// attempts. Only transient errors are retried; rate-limit, parse and other
// errors are returned immediately. Context cancellation aborts the wait.
func Retry(ctx context.Context, maxRetries int, delay, maxDelay time.Duration, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * DefaultBackoffMult)
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
