package indexer

import (
	"context"
	"time"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// withRetry calls fn until it succeeds or maxRetries retries have failed,
// doubling the delay after each failure up to maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := baseDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			if delay *= 2; delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
