package backup

import (
	"errors"
	"fmt"

	"mentorctl/internal/backend"
)

// ErrBackupConsumed is returned when a backup is restored or discarded twice.
var ErrBackupConsumed = errors.New("backup already consumed")

// CaptureError means a snapshot could not be taken. No backup is kept.
type CaptureError struct {
	Collection backend.Collection
	Err        error
}

func (e *CaptureError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("capture: %v", e.Err)
	}
	return fmt.Sprintf("capture %s: %v", e.Collection, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Phase is the restore step that failed.
type Phase string

const (
	PhaseClear  Phase = "clear"
	PhaseInsert Phase = "insert"
)

// RestoreError means the live backend was left partially restored and needs
// operator attention. It must not be retried blindly.
type RestoreError struct {
	Phase Phase
	// Failed is the collection whose step failed.
	Failed backend.Collection
	// Cleared lists collections emptied before the failure.
	Cleared []backend.Collection
	// Restored lists collections fully written back before the failure.
	Restored []backend.Collection
	Err      error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore %s of %s failed (restored %v): %v", e.Phase, e.Failed, e.Restored, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// Pending lists the collections that were not written back.
func (e *RestoreError) Pending() []backend.Collection {
	done := make(map[backend.Collection]bool, len(e.Restored))
	for _, c := range e.Restored {
		done[c] = true
	}
	var pending []backend.Collection
	for _, c := range backend.AllCollections {
		if !done[c] {
			pending = append(pending, c)
		}
	}
	return pending
}
