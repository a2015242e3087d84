package harness

import (
	"errors"
	"fmt"

	"mentorctl/internal/model"
)

var (
	// ErrRunInProgress is returned when a suite is started while another run
	// holds the backend.
	ErrRunInProgress = errors.New("a suite run is already in progress")
	// ErrRunCancelled marks a run stopped on request.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrUnknownCheck is returned for a check name missing from the registry.
	ErrUnknownCheck = errors.New("unknown check")
	// ErrRunNotFound is returned when a run ID is not in the history.
	ErrRunNotFound = errors.New("run not found")
)

// AssertionError is a deterministic expected-vs-actual mismatch. It is never
// retried.
type AssertionError struct {
	Message    string
	Diagnostic *model.Diagnostic
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Failf builds an AssertionError without a diagnostic.
func Failf(format string, args ...interface{}) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}
