package retry

import "time"

// Backoff computes the delay before the next attempt of a failed store call.
type Backoff interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on each attempt, capped at Max when set.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the delay after the given attempt (1-based).
func (b ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	// stop shifting before the duration overflows
	if attempt > 32 {
		attempt = 32
	}
	delay := base << (attempt - 1)
	if delay <= 0 || (b.Max > 0 && delay > b.Max) {
		if b.Max > 0 {
			return b.Max
		}
		return base
	}
	return delay
}

// ConstantBackoff waits the same Delay between every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b ConstantBackoff) Next(int) time.Duration { return b.Delay }

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		Base: 100 * time.Millisecond,
		Max:  5 * time.Second,
	}
}
