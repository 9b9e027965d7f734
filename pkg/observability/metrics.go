// Package observability provides Prometheus metrics for the codepool
// session execution client.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets defines histogram buckets suited for remote code
// execution latencies, ranging from 50ms to 120s.
var ExecutionBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// FragmentsTotal counts fragment submissions by runtime and outcome.
	// Status is one of "ok", "application_error", "transport_error".
	FragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepool_fragments_total",
			Help: "Fragment submissions",
		},
		[]string{"runtime", "status"},
	)

	// FragmentDuration records the round-trip duration of one fragment
	// submission in seconds by runtime.
	FragmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepool_fragment_duration_seconds",
			Help:    "Fragment round-trip duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"runtime"},
	)

	// BatchesTotal counts executed batches by runtime and final exit status
	// ("ok" or "error").
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepool_batches_total",
			Help: "Executed batches",
		},
		[]string{"runtime", "status"},
	)

	// BatchesInflight tracks the number of batches currently executing.
	BatchesInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepool_batches_inflight",
			Help: "Batches currently executing",
		},
	)

	// TokenRequestsTotal counts credential resolutions by source and outcome
	// ("ok", "error", "refresh_failed").
	TokenRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepool_token_requests_total",
			Help: "Credential resolutions",
		},
		[]string{"source", "status"},
	)

	// HistoryWritesTotal counts run-history writes by store type and outcome.
	HistoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepool_history_writes_total",
			Help: "Run history writes",
		},
		[]string{"store", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		FragmentsTotal,
		FragmentDuration,
		BatchesTotal,
		BatchesInflight,
		TokenRequestsTotal,
		HistoryWritesTotal,
	)
}
