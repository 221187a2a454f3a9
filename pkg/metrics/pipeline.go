package metrics

import (
	"net/http"
	"time"
)

// Metrics is the set of metrics the mock server records.
type Metrics struct {
	Registry *Registry

	// RequestsTotal counts handled requests. Labels: outcome, mode.
	RequestsTotal *Counter
	// RequestDuration observes handling time in seconds. Labels: outcome.
	RequestDuration *Histogram
	// JitterTriggered counts jitter responses served.
	JitterTriggered *Counter
	// ScriptErrors counts failed script runs. Labels: kind (error, timeout).
	ScriptErrors *Counter
	// Mocks is the number of stored definitions. Labels: mode.
	Mocks *Gauge
	// LogEntries is the number of entries held in the traffic log.
	LogEntries *Gauge
}

// New creates a Metrics backed by a fresh registry including Go runtime
// gauges.
func New() *Metrics {
	r := NewRegistry()
	m := &Metrics{
		Registry: r,
		RequestsTotal: r.NewCounter("mimic_requests_total",
			"Total number of mocked requests handled", "outcome", "mode"),
		RequestDuration: r.NewHistogram("mimic_request_duration_seconds",
			"Time spent handling mocked requests", DefaultBuckets, "outcome"),
		JitterTriggered: r.NewCounter("mimic_jitter_triggered_total",
			"Number of requests answered with the jitter response"),
		ScriptErrors: r.NewCounter("mimic_script_errors_total",
			"Number of failed script executions", "kind"),
		Mocks: r.NewGauge("mimic_mocks",
			"Number of configured mock definitions", "mode"),
		LogEntries: r.NewGauge("mimic_log_entries",
			"Number of entries in the traffic log"),
	}
	registerRuntime(r, time.Now())
	return m
}

// Handler serves all metrics.
func (m *Metrics) Handler() http.Handler {
	return m.Registry.Handler()
}
