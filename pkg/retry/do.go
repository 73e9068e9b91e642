package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times, sleeping according to backoff between
// failures. shouldRetry decides whether an error is worth another attempt;
// nil retries every error. The last error is returned.
func Do(ctx context.Context, attempts int, backoff Backoff, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = DefaultBackoff()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (shouldRetry != nil && !shouldRetry(err)) {
			return err
		}

		timer := time.NewTimer(backoff.Next(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
