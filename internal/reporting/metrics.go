package reporting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "mentorctl"

// Metrics turns run events into Prometheus series.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	testsTotal      *prometheus.CounterVec
	testAttempts    prometheus.Histogram
	retriesTotal    prometheus.Counter
	restoreFailures prometheus.Counter
	captureFailures prometheus.Counter
	runDuration     *prometheus.HistogramVec
	activeRuns      prometheus.Gauge
}

// NewMetrics registers the run metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Count of finished suite runs by final status",
		}, []string{"suite", "status"}),
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of finished tests by final status",
		}, []string{"suite", "status"}),
		testAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "test_attempts",
			Help:      "Attempts used per finished test",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "test_retries_total",
			Help:      "Count of retries after transient failures",
		}),
		restoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "restore_failures_total",
			Help:      "Count of failed restores leaving the backend polluted",
		}),
		captureFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "capture_failures_total",
			Help:      "Count of failed backup captures",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of finished suite runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"suite"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "active_runs",
			Help:      "Number of runs in progress",
		}),
	}
}

// Observe records one event.
func (m *Metrics) Observe(event Event) {
	switch e := event.(type) {
	case *RunEvent:
		switch e.Type() {
		case EventTypeRunStarted:
			m.activeRuns.Inc()
		case EventTypeRunFinished:
			m.activeRuns.Dec()
			m.runsTotal.WithLabelValues(e.Suite, string(e.Status)).Inc()
			m.runDuration.WithLabelValues(e.Suite).Observe(e.Duration.Seconds())
		}
	case *TestEvent:
		switch e.Type() {
		case EventTypeTestRetrying:
			m.retriesTotal.Inc()
		case EventTypeTestSucceeded, EventTypeTestFailed:
			m.testsTotal.WithLabelValues(e.Suite, string(e.Status)).Inc()
			m.testAttempts.Observe(float64(e.Attempt))
		}
	case *BackupEvent:
		switch e.Type() {
		case EventTypeBackupFailed:
			m.captureFailures.Inc()
		case EventTypeRestoreFailed:
			m.restoreFailures.Inc()
		}
	}
}

// Attach subscribes the metrics to bus.
func (m *Metrics) Attach(bus EventBus) *EventSubscription {
	return bus.Subscribe(nil, m.Observe)
}
