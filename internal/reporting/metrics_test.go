package reporting

import (
	"testing"
	"time"

	"mentorctl/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	bus := NewEventBus()
	m.Attach(bus)

	suite := testSuite("r1")
	bus.Publish(NewRunEvent(EventTypeRunStarted, suite))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRuns))

	bus.Publish(NewTestEvent(EventTypeTestRetrying, "r1", "smoke", 0, model.TestResult{Attempts: 1}))
	bus.Publish(NewTestEvent(EventTypeTestSucceeded, "r1", "smoke", 0, model.TestResult{Status: model.TestSuccess, Attempts: 2}))
	bus.Publish(NewTestEvent(EventTypeTestFailed, "r1", "smoke", 1, model.TestResult{Status: model.TestError, Attempts: 1}))
	bus.Publish(NewBackupEvent(EventTypeRestoreFailed, "r1", "smoke", "b1"))

	suite.Status = model.SuiteError
	suite.Duration = 2 * time.Second
	bus.Publish(NewRunEvent(EventTypeRunFinished, suite))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restoreFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsTotal.WithLabelValues("smoke", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsTotal.WithLabelValues("smoke", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("smoke", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration must fail loudly")
}
