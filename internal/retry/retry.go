// Package retry runs a callable with bounded retries on transient failures.
package retry

import (
	"context"
	"fmt"
	"time"

	"mentorctl/internal/backend"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Policy retries transient failures up to MaxRetries times, waiting Delay
// between attempts. Non-transient failures return immediately.
type Policy struct {
	MaxRetries int
	Delay      time.Duration

	// Classify reports whether err is worth retrying. Defaults to
	// backend.IsTransient.
	Classify func(err error) bool
	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, err error)
}

// ExhaustedError is returned once every attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Backoff is the fixed-interval schedule of p: MaxRetries+1 steps, Delay
// apart.
func (p Policy) Backoff() wait.Backoff {
	return wait.Backoff{
		Steps:    max(p.MaxRetries+1, 1),
		Duration: p.Delay,
		Factor:   1,
	}
}

// Do runs fn until it succeeds, fails non-transiently, or runs out of
// attempts. It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, fn Func) (int, error) {
	classify := p.Classify
	if classify == nil {
		classify = backend.IsTransient
	}
	backoff := p.Backoff()

	attempts := 0
	var lastErr, fatalErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempts++
		err := fn(ctx, attempts)
		if err == nil {
			return true, nil
		}
		if !classify(err) {
			fatalErr = err
			return false, err
		}
		lastErr = err
		if attempts < backoff.Steps && p.OnRetry != nil {
			p.OnRetry(attempts, err)
		}
		return false, nil
	})

	switch {
	case err == nil:
		return attempts, nil
	case fatalErr != nil:
		return attempts, fatalErr
	case attempts == backoff.Steps && lastErr != nil:
		return attempts, &ExhaustedError{Attempts: attempts, Last: lastErr}
	default:
		return attempts, fmt.Errorf("retry wait interrupted: %w", err)
	}
}

// Pause waits d unless ctx is done first. A non-positive d returns at once.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	waited := false
	return wait.ExponentialBackoffWithContext(ctx, wait.Backoff{Steps: 2, Duration: d, Factor: 1}, func(context.Context) (bool, error) {
		done := waited
		waited = true
		return done, nil
	})
}
