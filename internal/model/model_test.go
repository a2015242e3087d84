package model

import (
	"encoding/json"
	"testing"
	"time"

	"mentorctl/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suiteWith(statuses ...TestStatus) TestSuite {
	s := TestSuite{Status: SuiteRunning, TotalTests: len(statuses)}
	for _, st := range statuses {
		s.Tests = append(s.Tests, TestResult{Status: st})
		switch st {
		case TestSuccess:
			s.PassedTests++
		case TestError:
			s.FailedTests++
		}
	}
	return s
}

func TestTestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultTestConfig().Validate())
	assert.NoError(t, TestConfig{}.Validate())
	assert.NoError(t, TestConfig{EnableRestore: true}.Validate(), "restore without backup is a no-op, not an error")

	tests := []struct {
		name string
		cfg  TestConfig
	}{
		{"negative retries", TestConfig{MaxRetries: -1}},
		{"negative delay", TestConfig{DelayBetweenTests: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestTestSuite_CheckCounters(t *testing.T) {
	assert.NoError(t, suiteWith(TestPending, TestPending).CheckCounters())
	assert.NoError(t, suiteWith(TestSuccess, TestRunning, TestPending).CheckCounters())

	done := suiteWith(TestSuccess, TestError)
	assert.Error(t, done.CheckCounters(), "fully counted suite must be terminal")
	done.Status = SuiteError
	assert.NoError(t, done.CheckCounters())

	bad := suiteWith(TestSuccess, TestPending)
	bad.PassedTests = 2
	assert.Error(t, bad.CheckCounters())

	bad = suiteWith(TestSuccess)
	bad.TotalTests = 3
	assert.Error(t, bad.CheckCounters())
}

func TestTestSuite_CloneIsDeep(t *testing.T) {
	s := suiteWith(TestError)
	s.Tests[0].Error = &Failure{Kind: FailureAssertion, Message: "boom"}
	s.Tests[0].Diagnostics = &Diagnostic{Collection: backend.Courses, Key: "c1"}
	s.Fatal = &FatalCondition{Kind: FatalRestore, Pending: []backend.Collection{backend.Contents}}

	c := s.Clone()
	c.Tests[0].Error.Message = "changed"
	c.Tests[0].Diagnostics.Key = "c2"
	c.Fatal.Pending[0] = backend.Profiles

	require.NotNil(t, s.Tests[0].Error)
	assert.Equal(t, "boom", s.Tests[0].Error.Message)
	assert.Equal(t, "c1", s.Tests[0].Diagnostics.Key)
	assert.Equal(t, backend.Contents, s.Fatal.Pending[0])
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, TestPending.Terminal())
	assert.False(t, TestRunning.Terminal())
	assert.True(t, TestSuccess.Terminal())
	assert.True(t, TestError.Terminal())
	assert.False(t, SuiteRunning.Terminal())
	assert.True(t, SuiteCompleted.Terminal())
	assert.True(t, SuiteError.Terminal())
}

func TestConfigOverrides_Apply(t *testing.T) {
	no := false
	retries := 5

	cfg, err := ConfigOverrides{
		EnableRestore:     &no,
		DelayBetweenTests: "2s",
		MaxRetries:        &retries,
	}.Apply(DefaultTestConfig())
	require.NoError(t, err)
	assert.True(t, cfg.EnableBackup)
	assert.False(t, cfg.EnableRestore)
	assert.Equal(t, 2*time.Second, cfg.DelayBetweenTests)
	assert.Equal(t, 5, cfg.MaxRetries)

	_, err = ConfigOverrides{DelayBetweenTests: "soon"}.Apply(DefaultTestConfig())
	assert.ErrorContains(t, err, "invalid delayBetweenTests")

	cfg, err = ConfigOverrides{EnableBackup: &no}.Apply(DefaultTestConfig())
	require.NoError(t, err)
	assert.False(t, cfg.EnableBackup)
	assert.True(t, cfg.EnableRestore)

	negative := -1
	_, err = ConfigOverrides{MaxRetries: &negative}.Apply(DefaultTestConfig())
	assert.ErrorContains(t, err, "maxRetries")
}

func TestPendingRecordsOmitTimestamps(t *testing.T) {
	data, err := json.Marshal(suiteWith(TestPending))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "timestamp")
	assert.NotContains(t, string(data), "startedAt")
	assert.NotContains(t, string(data), "finishedAt")
	assert.NotContains(t, string(data), "0001-01-01")

	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	s := suiteWith(TestSuccess)
	s.Status = SuiteCompleted
	s.Tests[0].Timestamp = &at
	data, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2026-05-01T09:30:00Z"`)

	c := s.Clone()
	later := at.Add(time.Hour)
	*c.Tests[0].Timestamp = later
	assert.Equal(t, at, *s.Tests[0].Timestamp, "clone does not share timestamps")
}
