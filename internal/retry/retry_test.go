package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentorctl/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Backoff(t *testing.T) {
	b := Policy{MaxRetries: 2, Delay: 250 * time.Millisecond}.Backoff()
	assert.Equal(t, 3, b.Steps)
	assert.Equal(t, 250*time.Millisecond, b.Duration)
	assert.Equal(t, 1.0, b.Factor, "fixed pacing, no growth")

	assert.Equal(t, 1, Policy{MaxRetries: -3}.Backoff().Steps)
}

func TestPolicy_AlwaysTransientExhausts(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 5} {
		var retried []int
		p := Policy{
			MaxRetries: maxRetries,
			Delay:      time.Millisecond,
			OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
		}

		calls := 0
		attempts, err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			return backend.Transient("read", errors.New("connection reset"))
		})

		require.Error(t, err)
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, maxRetries+1, exhausted.Attempts)
		assert.Equal(t, maxRetries+1, attempts)
		assert.Equal(t, maxRetries+1, calls)
		assert.Len(t, retried, maxRetries, "one delay between each pair of attempts")
		assert.True(t, backend.IsTransient(err), "last cause stays reachable")
	}
}

func TestPolicy_NonTransientSingleAttempt(t *testing.T) {
	retried := 0
	p := Policy{MaxRetries: 3, Delay: time.Hour, OnRetry: func(int, error) { retried++ }}
	assertionErr := errors.New("expected 2 modules, got 1")

	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return assertionErr
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Same(t, assertionErr, err)
	assert.Zero(t, retried)
}

func TestPolicy_RecoversAfterTransientFailures(t *testing.T) {
	var retried []int
	p := Policy{
		MaxRetries: 2,
		OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
	}

	attempts, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return backend.Transient("put", errors.New("timeout"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestPolicy_CustomClassifier(t *testing.T) {
	flaky := errors.New("flaky")
	p := Policy{
		MaxRetries: 1,
		Classify:   func(err error) bool { return errors.Is(err, flaky) },
	}
	attempts, err := p.Do(context.Background(), func(context.Context, int) error { return flaky })
	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, err, flaky)
}

func TestPolicy_WaitInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := Policy{MaxRetries: 3, Delay: time.Hour}

	attempts, err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return backend.Transient("read", errors.New("reset"))
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestPause(t *testing.T) {
	assert.NoError(t, Pause(context.Background(), 0))

	start := time.Now()
	require.NoError(t, Pause(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Pause(ctx, time.Hour), context.Canceled)
}
