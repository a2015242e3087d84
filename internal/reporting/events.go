package reporting

import (
	"fmt"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/internal/model"
)

// EventType defines the type of event
type EventType string

const (
	// Run lifecycle events
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCancelled EventType = "run.cancelled"
	EventTypeRunFinished  EventType = "run.finished"

	// Backup events
	EventTypeBackupCaptured   EventType = "backup.captured"
	EventTypeBackupFailed     EventType = "backup.failed"
	EventTypeRestoreCompleted EventType = "restore.completed"
	EventTypeRestoreFailed    EventType = "restore.failed"

	// Test events
	EventTypeTestRunning   EventType = "test.running"
	EventTypeTestRetrying  EventType = "test.retrying"
	EventTypeTestSucceeded EventType = "test.succeeded"
	EventTypeTestFailed    EventType = "test.failed"
)

// EventSeverity indicates the importance of an event
type EventSeverity string

const (
	SeverityDebug EventSeverity = "debug"
	SeverityInfo  EventSeverity = "info"
	SeverityWarn  EventSeverity = "warn"
	SeverityError EventSeverity = "error"
	SeverityFatal EventSeverity = "fatal"
)

// Event is the base interface for all run events
type Event interface {
	Type() EventType
	// RunID identifies the suite run the event belongs to.
	RunID() string
	Timestamp() time.Time
	Severity() EventSeverity
	String() string
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventType     EventType     `json:"type"`
	Run           string        `json:"runId"`
	Suite         string        `json:"suite"`
	EventTime     time.Time     `json:"timestamp"`
	EventSeverity EventSeverity `json:"severity"`
}

func (e BaseEvent) Type() EventType         { return e.EventType }
func (e BaseEvent) RunID() string           { return e.Run }
func (e BaseEvent) Timestamp() time.Time    { return e.EventTime }
func (e BaseEvent) Severity() EventSeverity { return e.EventSeverity }

func (e BaseEvent) String() string {
	return fmt.Sprintf("[%s] %s %s", e.EventSeverity, e.EventType, e.Suite)
}

func newBase(t EventType, severity EventSeverity, runID, suite string) BaseEvent {
	return BaseEvent{
		EventType:     t,
		Run:           runID,
		Suite:         suite,
		EventTime:     time.Now(),
		EventSeverity: severity,
	}
}

// RunEvent reports a suite lifecycle transition.
type RunEvent struct {
	BaseEvent
	Status   model.SuiteStatus `json:"status"`
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Duration time.Duration     `json:"duration,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// NewRunEvent builds a run event from a suite snapshot.
func NewRunEvent(t EventType, suite model.TestSuite) *RunEvent {
	severity := SeverityInfo
	switch {
	case t == EventTypeRunCancelled:
		severity = SeverityWarn
	case t == EventTypeRunFinished && suite.Status == model.SuiteError:
		severity = SeverityError
	}
	return &RunEvent{
		BaseEvent: newBase(t, severity, suite.ID, suite.Name),
		Status:    suite.Status,
		Total:     suite.TotalTests,
		Passed:    suite.PassedTests,
		Failed:    suite.FailedTests,
		Duration:  suite.Duration,
	}
}

func (e *RunEvent) String() string {
	return fmt.Sprintf("%s %s: %s (%d/%d passed, %d failed)", e.EventType, e.Suite, e.Status, e.Passed, e.Total, e.Failed)
}

// TestEvent reports a test transition or retry.
type TestEvent struct {
	BaseEvent
	TestID   string           `json:"testId"`
	TestName string           `json:"testName"`
	Index    int              `json:"index"`
	Status   model.TestStatus `json:"status"`
	Attempt  int              `json:"attempt,omitempty"`
	Duration time.Duration    `json:"duration,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewTestEvent builds a test event for the test at index.
func NewTestEvent(t EventType, runID, suite string, index int, result model.TestResult) *TestEvent {
	severity := SeverityInfo
	switch t {
	case EventTypeTestRunning:
		severity = SeverityDebug
	case EventTypeTestRetrying:
		severity = SeverityWarn
	case EventTypeTestFailed:
		severity = SeverityError
	}
	e := &TestEvent{
		BaseEvent: newBase(t, severity, runID, suite),
		TestID:    result.ID,
		TestName:  result.Name,
		Index:     index,
		Status:    result.Status,
		Attempt:   result.Attempts,
		Duration:  result.Duration,
	}
	if result.Error != nil {
		e.Error = result.Error.Message
	}
	return e
}

// WithError sets the error message.
func (e *TestEvent) WithError(err error) *TestEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (e *TestEvent) String() string {
	s := fmt.Sprintf("%s %s (attempt %d)", e.EventType, e.TestName, e.Attempt)
	if e.Error != "" {
		s += ": " + e.Error
	}
	return s
}

// BackupEvent reports capture and restore outcomes.
type BackupEvent struct {
	BaseEvent
	BackupID string                     `json:"backupId,omitempty"`
	Counts   map[backend.Collection]int `json:"counts,omitempty"`
	Restored []backend.Collection       `json:"restored,omitempty"`
	Pending  []backend.Collection       `json:"pending,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// NewBackupEvent builds a backup event.
func NewBackupEvent(t EventType, runID, suite, backupID string) *BackupEvent {
	severity := SeverityInfo
	switch t {
	case EventTypeBackupFailed:
		severity = SeverityError
	case EventTypeRestoreFailed:
		severity = SeverityFatal
	}
	return &BackupEvent{
		BaseEvent: newBase(t, severity, runID, suite),
		BackupID:  backupID,
	}
}

// WithError sets the error message.
func (e *BackupEvent) WithError(err error) *BackupEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (e *BackupEvent) String() string {
	s := fmt.Sprintf("%s %s", e.EventType, e.BackupID)
	if e.Error != "" {
		s += ": " + e.Error
	}
	return s
}
