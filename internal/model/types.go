// Package model holds the run records shared by the harness, the reporting
// layer and the outer surfaces (CLI, HTTP, MCP, TUI).
package model

import (
	"fmt"
	"time"

	"mentorctl/internal/backend"
)

// TestStatus is the state of a single test.
type TestStatus string

const (
	TestPending TestStatus = "pending"
	TestRunning TestStatus = "running"
	TestSuccess TestStatus = "success"
	TestError   TestStatus = "error"
)

// Terminal reports whether no further transitions are possible.
func (s TestStatus) Terminal() bool {
	return s == TestSuccess || s == TestError
}

// SuiteStatus is the state of a whole suite run.
type SuiteStatus string

const (
	SuitePending   SuiteStatus = "pending"
	SuiteRunning   SuiteStatus = "running"
	SuiteCompleted SuiteStatus = "completed"
	SuiteError     SuiteStatus = "error"
)

// Terminal reports whether no further transitions are possible.
func (s SuiteStatus) Terminal() bool {
	return s == SuiteCompleted || s == SuiteError
}

// FailureKind classifies why a test ended in error.
type FailureKind string

const (
	FailureAssertion FailureKind = "assertion"
	FailureExhausted FailureKind = "retries_exhausted"
	FailureBackend   FailureKind = "backend"
)

// Failure is the error detail of a test that ended in error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Diagnostic is the typed payload attached to a test result. Collection tags
// which record type Expected and Actual carry.
type Diagnostic struct {
	Collection backend.Collection `json:"collection"`
	Key        string             `json:"key,omitempty"`
	Expected   backend.Record     `json:"expected,omitempty"`
	Actual     backend.Record     `json:"actual,omitempty"`
	Diff       string             `json:"diff,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// TestResult is one test inside a suite.
type TestResult struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Check       string        `json:"check"`
	Status      TestStatus    `json:"status"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       *Failure      `json:"error,omitempty"`
	Diagnostics *Diagnostic   `json:"diagnostics,omitempty"`
	Timestamp   *time.Time    `json:"timestamp,omitempty"`
}

// TestSuite is one run of an ordered list of tests.
type TestSuite struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Tests       []TestResult  `json:"tests"`
	Status      SuiteStatus   `json:"status"`
	TotalTests  int           `json:"totalTests"`
	PassedTests int           `json:"passedTests"`
	FailedTests int           `json:"failedTests"`
	Duration    time.Duration `json:"duration,omitempty"`

	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// BackupID identifies the snapshot captured for this run, if any.
	BackupID string `json:"backupId,omitempty"`
	// Restored is true once the captured snapshot was written back.
	Restored bool `json:"restored"`
	// Cancelled is set when the run stopped early on request.
	Cancelled bool `json:"cancelled,omitempty"`
	// Fatal carries a capture or restore failure. It is reported apart from
	// test outcomes because it may leave the backend in a polluted state.
	Fatal *FatalCondition `json:"fatal,omitempty"`
}

// FatalKind names a run-aborting condition.
type FatalKind string

const (
	FatalCapture FatalKind = "capture_failed"
	FatalRestore FatalKind = "restore_failed"
)

// FatalCondition describes a capture or restore failure.
type FatalCondition struct {
	Kind    FatalKind `json:"kind"`
	Message string    `json:"message"`
	// Restored lists collections already written back when a restore failed.
	Restored []backend.Collection `json:"restored,omitempty"`
	// Pending lists collections that still hold test data.
	Pending []backend.Collection `json:"pending,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s TestSuite) Clone() TestSuite {
	out := s
	out.Tests = make([]TestResult, len(s.Tests))
	for i, t := range s.Tests {
		if t.Error != nil {
			e := *t.Error
			t.Error = &e
		}
		if t.Diagnostics != nil {
			d := *t.Diagnostics
			t.Diagnostics = &d
		}
		t.Timestamp = cloneTime(t.Timestamp)
		out.Tests[i] = t
	}
	out.StartedAt = cloneTime(s.StartedAt)
	out.FinishedAt = cloneTime(s.FinishedAt)
	if s.Fatal != nil {
		f := *s.Fatal
		f.Restored = append([]backend.Collection(nil), s.Fatal.Restored...)
		f.Pending = append([]backend.Collection(nil), s.Fatal.Pending...)
		out.Fatal = &f
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Finished returns the number of tests in a terminal state.
func (s TestSuite) Finished() int {
	return s.PassedTests + s.FailedTests
}

// CheckCounters verifies the counter invariants of a suite snapshot.
func (s TestSuite) CheckCounters() error {
	if s.TotalTests != len(s.Tests) {
		return fmt.Errorf("totalTests %d != %d tests", s.TotalTests, len(s.Tests))
	}
	if s.PassedTests < 0 || s.FailedTests < 0 {
		return fmt.Errorf("negative counters: passed=%d failed=%d", s.PassedTests, s.FailedTests)
	}
	finished := s.Finished()
	if finished > s.TotalTests {
		return fmt.Errorf("passed+failed %d exceeds total %d", finished, s.TotalTests)
	}
	if finished == s.TotalTests && s.TotalTests > 0 && !s.Status.Terminal() {
		return fmt.Errorf("all %d tests counted while suite is %s", finished, s.Status)
	}
	var passed, failed int
	for _, t := range s.Tests {
		switch t.Status {
		case TestSuccess:
			passed++
		case TestError:
			failed++
		}
	}
	if passed != s.PassedTests || failed != s.FailedTests {
		return fmt.Errorf("counters passed=%d failed=%d disagree with tests passed=%d failed=%d",
			s.PassedTests, s.FailedTests, passed, failed)
	}
	return nil
}
