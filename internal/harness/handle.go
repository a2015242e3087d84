package harness

import (
	"context"
	"sync/atomic"

	"mentorctl/internal/model"
	"mentorctl/internal/reporting"
)

// RunHandle is returned by Start. It is the caller's view of one run.
type RunHandle struct {
	ID     string
	Config model.TestConfig

	tracker   *reporting.Tracker
	cancel    context.CancelFunc
	requested atomic.Bool
	done      chan struct{}
}

// Cancel asks the run to stop. The test in flight finishes first, then a
// best-effort restore runs if one is configured.
func (h *RunHandle) Cancel() {
	if h.requested.CompareAndSwap(false, true) {
		h.cancel()
	}
}

// CancelRequested reports whether Cancel was called.
func (h *RunHandle) CancelRequested() bool {
	return h.requested.Load()
}

// Done is closed once the run reached completed or error, its final event
// was published and the orchestrator accepts a new run.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Snapshot returns the current state of the run.
func (h *RunHandle) Snapshot() model.TestSuite {
	return h.tracker.Snapshot()
}

// Subscribe streams snapshots until the run finishes.
func (h *RunHandle) Subscribe() (<-chan model.TestSuite, func()) {
	return h.tracker.Subscribe()
}

// Wait blocks until the run finishes or ctx is done. Leaving early does not
// cancel the run.
func (h *RunHandle) Wait(ctx context.Context) (model.TestSuite, error) {
	select {
	case <-h.Done():
		return h.Snapshot(), nil
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}
