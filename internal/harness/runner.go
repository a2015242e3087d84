package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/internal/model"
	"mentorctl/internal/retry"
	"mentorctl/pkg/logging"
)

// Runner executes one test to a terminal state. It never touches the suite
// counters; the orchestrator applies its result.
type Runner struct {
	adapter backend.Adapter
	now     func() time.Time
}

// NewRunner creates a runner against adapter.
func NewRunner(adapter backend.Adapter) *Runner {
	return &Runner{adapter: adapter, now: time.Now}
}

// Execute runs tc under the retry policy of cfg and returns result moved to
// success or error, with attempts, duration and timestamp stamped. onRetry
// is called before each retry wait.
func (r *Runner) Execute(ctx context.Context, tc TestCase, result model.TestResult, cfg model.TestConfig, onRetry func(attempt int, err error)) model.TestResult {
	policy := retry.Policy{
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.DelayBetweenTests,
		OnRetry:    onRetry,
	}

	start := r.now()
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		logging.Debug("Runner", "Test %q attempt %d", tc.Name, attempt)
		return r.invoke(ctx, tc)
	})
	end := r.now()

	result.Attempts = attempts
	result.Duration = end.Sub(start)
	result.Timestamp = &end
	if err == nil {
		result.Status = model.TestSuccess
		return result
	}

	result.Status = model.TestError
	result.Error = &model.Failure{Kind: model.FailureBackend, Message: err.Error()}

	var assertErr *AssertionError
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &assertErr):
		result.Error.Kind = model.FailureAssertion
		result.Diagnostics = assertErr.Diagnostic
	case errors.As(err, &exhausted):
		result.Error.Kind = model.FailureExhausted
	}
	return result
}

// invoke runs a check, turning a panic into a non-transient failure.
func (r *Runner) invoke(ctx context.Context, tc TestCase) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("check %s panicked: %v", tc.Check, p)
		}
	}()
	return tc.Run(ctx, r.adapter, tc.Params)
}
