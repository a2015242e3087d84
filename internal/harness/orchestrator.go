package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/internal/backup"
	"mentorctl/internal/model"
	"mentorctl/internal/reporting"
	"mentorctl/internal/retry"
	"mentorctl/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const subsystem = "Orchestrator"

// DefaultHistoryLimit is the number of finished runs kept for lookup.
const DefaultHistoryLimit = 20

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus publishes run events on bus.
func WithEventBus(bus reporting.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithSleep replaces the pause between tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithHistoryLimit bounds the number of runs kept for lookup.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// Orchestrator runs one suite at a time against a backend.
type Orchestrator struct {
	adapter      backend.Adapter
	backups      *backup.Manager
	runner       *Runner
	bus          reporting.EventBus
	sleep        func(ctx context.Context, d time.Duration) error
	sem          *semaphore.Weighted
	historyLimit int

	mu     sync.RWMutex
	runs   map[string]*RunHandle
	order  []string
	active *RunHandle
}

// NewOrchestrator creates an orchestrator owning adapter.
func NewOrchestrator(adapter backend.Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapter:      adapter,
		backups:      backup.NewManager(adapter),
		runner:       NewRunner(adapter),
		sleep:        retry.Pause,
		sem:          semaphore.NewWeighted(1),
		historyLimit: DefaultHistoryLimit,
		runs:         make(map[string]*RunHandle),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.bus == nil {
		o.bus = reporting.NewEventBus()
	}
	return o
}

// EventBus returns the bus run events are published on.
func (o *Orchestrator) EventBus() reporting.EventBus {
	return o.bus
}

// Start launches suite in the background and returns at once. It fails with
// ErrRunInProgress while another run is active. The run ignores ctx
// cancellation; use the handle to cancel it.
func (o *Orchestrator) Start(ctx context.Context, suite Suite, cfg model.TestConfig) (*RunHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid test config: %w", err)
	}
	if !o.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}

	record := model.TestSuite{
		ID:          uuid.New().String(),
		Name:        suite.Name,
		Description: suite.Description,
		Status:      model.SuitePending,
		Tests:       make([]model.TestResult, len(suite.Tests)),
	}
	for i, tc := range suite.Tests {
		record.Tests[i] = model.TestResult{
			ID:     uuid.New().String(),
			Name:   tc.Name,
			Check:  tc.Check,
			Status: model.TestPending,
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &RunHandle{
		ID:      record.ID,
		Config:  cfg,
		tracker: reporting.NewTracker(record),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	o.remember(h)

	go func() {
		defer close(h.done)
		defer cancel()
		status, finalize := o.execute(runCtx, h, suite, cfg)

		// A run is terminal and announced before the next one can start.
		final := h.tracker.Finish(status, finalize)
		o.bus.Publish(reporting.NewRunEvent(reporting.EventTypeRunFinished, final))
		logging.Info(subsystem, "Suite %s finished: %s (%d passed, %d failed, %d total) in %s",
			final.Name, final.Status, final.PassedTests, final.FailedTests, final.TotalTests, final.Duration)

		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()
		o.sem.Release(1)
	}()
	return h, nil
}

// Run starts suite and waits for it. Cancelling ctx cancels the run, which
// still finishes its in-flight test and restore before Run returns.
func (o *Orchestrator) Run(ctx context.Context, suite Suite, cfg model.TestConfig) (model.TestSuite, error) {
	h, err := o.Start(ctx, suite, cfg)
	if err != nil {
		return model.TestSuite{}, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
		<-h.Done()
	}
	final := h.Snapshot()
	if final.Cancelled {
		return final, ErrRunCancelled
	}
	return final, nil
}

// execute drives the run and returns the final status plus the last changes
// to apply atomically with it.
func (o *Orchestrator) execute(ctx context.Context, h *RunHandle, suite Suite, cfg model.TestConfig) (model.SuiteStatus, func(*model.TestSuite)) {
	started := h.tracker.Begin()
	o.bus.Publish(reporting.NewRunEvent(reporting.EventTypeRunStarted, started))
	logging.Info(subsystem, "Starting suite %s (run %s, %d tests)", suite.Name, h.ID, len(suite.Tests))

	var b *backup.Backup
	if cfg.EnableBackup {
		var err error
		b, err = o.capture(ctx)
		if err != nil {
			logging.Error(subsystem, err, "Backup capture failed, no tests will run")
			o.bus.Publish(reporting.NewBackupEvent(reporting.EventTypeBackupFailed, h.ID, suite.Name, "").WithError(err))
			cancelled := errors.Is(err, context.Canceled)
			return model.SuiteError, func(s *model.TestSuite) {
				s.Fatal = &model.FatalCondition{Kind: model.FatalCapture, Message: err.Error()}
				s.Cancelled = cancelled
			}
		}
		defer o.backups.Discard(b)

		h.tracker.Update(func(s *model.TestSuite) { s.BackupID = b.ID })
		ev := reporting.NewBackupEvent(reporting.EventTypeBackupCaptured, h.ID, suite.Name, b.ID)
		ev.Counts = b.Counts()
		o.bus.Publish(ev)
	}

	// The last result is applied together with the terminal status so a
	// fully counted suite is never observed as running.
	var last *model.TestResult
	cancelled := false
	for i, tc := range suite.Tests {
		if i > 0 {
			if err := o.sleep(ctx, cfg.DelayBetweenTests); err != nil {
				cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		result := o.runTest(ctx, h, suite, i, tc, cfg)
		if i == len(suite.Tests)-1 {
			last = &result
			break
		}
		h.tracker.Update(func(s *model.TestSuite) { applyResult(s, i, result) })
	}

	if cancelled {
		snap := h.tracker.Update(func(s *model.TestSuite) { s.Cancelled = true })
		o.bus.Publish(reporting.NewRunEvent(reporting.EventTypeRunCancelled, snap))
		logging.Warn(subsystem, "Suite %s cancelled after %d of %d tests", suite.Name, snap.Finished(), snap.TotalTests)
	}

	var fatal *model.FatalCondition
	restored := false
	if b != nil && cfg.EnableRestore {
		fatal = o.restore(ctx, h, suite, b)
		restored = fatal == nil
	}

	failed := h.tracker.Snapshot().FailedTests
	if last != nil && last.Status == model.TestError {
		failed++
	}
	status := model.SuiteCompleted
	if cancelled || fatal != nil || (failed > 0 && !cfg.TolerateTestErrors) {
		status = model.SuiteError
	}

	lastIndex := len(suite.Tests) - 1
	return status, func(s *model.TestSuite) {
		if last != nil {
			applyResult(s, lastIndex, *last)
		}
		s.Restored = restored
		s.Fatal = fatal
	}
}

// capture is fail-closed: a cancelled context counts as a capture failure.
func (o *Orchestrator) capture(ctx context.Context) (*backup.Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backup.CaptureError{Err: err}
	}
	return o.backups.Capture(ctx)
}

func (o *Orchestrator) runTest(ctx context.Context, h *RunHandle, suite Suite, i int, tc TestCase, cfg model.TestConfig) model.TestResult {
	running := h.tracker.Update(func(s *model.TestSuite) { s.Tests[i].Status = model.TestRunning })
	current := running.Tests[i]
	o.bus.Publish(reporting.NewTestEvent(reporting.EventTypeTestRunning, h.ID, suite.Name, i, current))

	onRetry := func(attempt int, err error) {
		logging.Warn(subsystem, "Test %q attempt %d failed transiently, retrying: %v", tc.Name, attempt, err)
		r := current
		r.Attempts = attempt
		o.bus.Publish(reporting.NewTestEvent(reporting.EventTypeTestRetrying, h.ID, suite.Name, i, r).WithError(err))
	}

	// Tests are never interrupted mid-flight.
	result := o.runner.Execute(context.WithoutCancel(ctx), tc, current, cfg, onRetry)

	eventType := reporting.EventTypeTestSucceeded
	if result.Status == model.TestError {
		eventType = reporting.EventTypeTestFailed
		logging.Warn(subsystem, "Test %q failed after %d attempt(s): %s", tc.Name, result.Attempts, result.Error.Message)
	}
	o.bus.Publish(reporting.NewTestEvent(eventType, h.ID, suite.Name, i, result))
	return result
}

// restore runs to completion even when the run was cancelled.
func (o *Orchestrator) restore(ctx context.Context, h *RunHandle, suite Suite, b *backup.Backup) *model.FatalCondition {
	err := o.backups.Restore(context.WithoutCancel(ctx), b)
	if err == nil {
		o.bus.Publish(reporting.NewBackupEvent(reporting.EventTypeRestoreCompleted, h.ID, suite.Name, b.ID))
		return nil
	}

	fatal := &model.FatalCondition{Kind: model.FatalRestore, Message: err.Error()}
	fatal.Pending = append(fatal.Pending, backend.AllCollections...)
	var rerr *backup.RestoreError
	if errors.As(err, &rerr) {
		fatal.Restored = rerr.Restored
		fatal.Pending = rerr.Pending()
	}
	ev := reporting.NewBackupEvent(reporting.EventTypeRestoreFailed, h.ID, suite.Name, b.ID).WithError(err)
	ev.Restored = fatal.Restored
	ev.Pending = fatal.Pending
	o.bus.Publish(ev)
	return fatal
}

// applyResult stores a terminal test result and counts it exactly once.
func applyResult(s *model.TestSuite, i int, result model.TestResult) {
	s.Tests[i] = result
	switch result.Status {
	case model.TestSuccess:
		s.PassedTests++
	case model.TestError:
		s.FailedTests++
	}
}

func (o *Orchestrator) remember(h *RunHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs[h.ID] = h
	o.order = append(o.order, h.ID)
	o.active = h

	for len(o.order) > o.historyLimit {
		oldest := o.order[0]
		if o.runs[oldest] == o.active {
			break
		}
		delete(o.runs, oldest)
		o.order = o.order[1:]
	}
}

// Get returns the run with id.
func (o *Orchestrator) Get(id string) (*RunHandle, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return h, nil
}

// Active returns the run in progress, if any.
func (o *Orchestrator) Active() *RunHandle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// Cancel cancels the run with id.
func (o *Orchestrator) Cancel(id string) error {
	h, err := o.Get(id)
	if err != nil {
		return err
	}
	h.Cancel()
	return nil
}

// History returns snapshots of remembered runs, newest first.
func (o *Orchestrator) History() []model.TestSuite {
	o.mu.RLock()
	handles := make([]*RunHandle, 0, len(o.order))
	for i := len(o.order) - 1; i >= 0; i-- {
		handles = append(handles, o.runs[o.order[i]])
	}
	o.mu.RUnlock()

	out := make([]model.TestSuite, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Snapshot())
	}
	return out
}
