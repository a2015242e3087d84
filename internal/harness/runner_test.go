package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner() *Runner {
	return NewRunner(backend.NewMemoryStore())
}

func caseOf(fn Check) TestCase {
	return TestCase{TestDefinition: TestDefinition{Name: "t", Check: "t"}, Run: fn}
}

func TestRunner_Success(t *testing.T) {
	r := newTestRunner()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(40 * time.Millisecond)}
	r.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	res := r.Execute(context.Background(), caseOf(func(context.Context, backend.Adapter, map[string]string) error {
		return nil
	}), model.TestResult{ID: "1", Status: model.TestRunning}, model.TestConfig{}, nil)

	assert.Equal(t, model.TestSuccess, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 40*time.Millisecond, res.Duration)
	require.NotNil(t, res.Timestamp)
	assert.Equal(t, start.Add(40*time.Millisecond), *res.Timestamp)
	assert.Nil(t, res.Error)
}

func TestRunner_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		retries  int
		kind     model.FailureKind
		attempts int
	}{
		{"assertion", Failf("mismatch"), 3, model.FailureAssertion, 1},
		{"exhausted", backend.Transient("get", errors.New("timeout")), 2, model.FailureExhausted, 3},
		{"backend", backend.ErrNotFound, 3, model.FailureBackend, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner()
			retried := 0
			res := r.Execute(context.Background(), caseOf(func(context.Context, backend.Adapter, map[string]string) error {
				return tt.err
			}), model.TestResult{}, model.TestConfig{MaxRetries: tt.retries}, func(int, error) { retried++ })

			assert.Equal(t, model.TestError, res.Status)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.kind, res.Error.Kind)
			assert.Equal(t, tt.attempts, res.Attempts)
			assert.Equal(t, tt.attempts-1, retried)
			assert.NotNil(t, res.Timestamp)
		})
	}
}

func TestRunner_AssertionDiagnostic(t *testing.T) {
	r := newTestRunner()
	diag := &model.Diagnostic{Collection: backend.Courses, Key: "c1", Diff: "-a +b"}
	res := r.Execute(context.Background(), caseOf(func(context.Context, backend.Adapter, map[string]string) error {
		return &AssertionError{Message: "title differs", Diagnostic: diag}
	}), model.TestResult{}, model.TestConfig{}, nil)

	assert.Equal(t, "title differs", res.Error.Message)
	assert.Equal(t, diag, res.Diagnostics)
}

func TestRunner_PanicIsFailure(t *testing.T) {
	r := newTestRunner()
	res := r.Execute(context.Background(), caseOf(func(context.Context, backend.Adapter, map[string]string) error {
		panic("nil map")
	}), model.TestResult{}, model.TestConfig{MaxRetries: 2}, nil)

	assert.Equal(t, model.TestError, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Error.Message, "panicked")
}

func TestRunner_PassesParams(t *testing.T) {
	r := newTestRunner()
	tc := caseOf(func(_ context.Context, _ backend.Adapter, params map[string]string) error {
		if params["id"] != "c7" {
			return Failf("got %q", params["id"])
		}
		return nil
	})
	tc.Params = map[string]string{"id": "c7"}
	res := r.Execute(context.Background(), tc, model.TestResult{}, model.TestConfig{}, nil)
	assert.Equal(t, model.TestSuccess, res.Status)
}
