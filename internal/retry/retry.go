// Package retry runs an operation under an exponential-backoff envelope with
// a fixed attempt cap.
//
// Callers decide what is retryable; the envelope only counts attempts, sleeps
// between them, honours Retry-After hints and stops promptly when the context
// is cancelled. Retries never cross stage boundaries: each external call owns
// its own envelope.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Policy configures the envelope. Zero values fall back to 3 attempts,
// 1s base delay and 10s max delay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep replaces the timer-based wait; tests use it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is invoked before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// RetryAfterer is implemented by errors that carry a server-supplied delay.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// cap is reached, or ctx is done. Non-retryable errors are returned unchanged;
// exhaustion is reported as *ExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, p Policy, operation string, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if retryable == nil || !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		delay := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Operation: operation, Attempts: attempts, Err: lastErr}
}

// IsExhausted reports whether err came from a spent retry envelope.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return defaultAttempts
	}
	return p.Attempts
}

// Backoff returns the delay before retry number attempt (1-based):
// base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base == 0 {
		base = defaultBaseDelay
	}
	if base < 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) delay(attempt int, err error) time.Duration {
	var hinted RetryAfterer
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfter(); d > 0 {
			return p.capDelay(d)
		}
	}
	return p.Backoff(attempt)
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return defaultMaxDelay
	}
	return p.MaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if p.Sleep != nil {
		if err := p.Sleep(ctx, delay); err != nil {
			return err
		}
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep is a Policy.Sleep implementation that returns immediately.
func NoSleep(context.Context, time.Duration) error { return nil }
