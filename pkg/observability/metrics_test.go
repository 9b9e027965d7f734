package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	// Seed every metric so counters and histograms become visible to Gather.
	FragmentsTotal.WithLabelValues("python", "ok").Inc()
	FragmentDuration.WithLabelValues("python").Observe(0.1)
	BatchesTotal.WithLabelValues("python", "ok").Inc()
	BatchesInflight.Inc()
	BatchesInflight.Dec()
	TokenRequestsTotal.WithLabelValues("chain", "ok").Inc()
	HistoryWritesTotal.WithLabelValues("memory", "ok").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"codepool_fragments_total":           false,
		"codepool_fragment_duration_seconds": false,
		"codepool_batches_total":             false,
		"codepool_batches_inflight":          false,
		"codepool_token_requests_total":      false,
		"codepool_history_writes_total":      false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %s not found in default registry", name)
		}
	}
}

// TestFragmentCounterLabels verifies label cardinality by reading a counter
// value back through the client model.
func TestFragmentCounterLabels(t *testing.T) {
	before := counterValue(t, FragmentsTotal, "go", "transport_error")
	FragmentsTotal.WithLabelValues("go", "transport_error").Inc()
	after := counterValue(t, FragmentsTotal, "go", "transport_error")

	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
