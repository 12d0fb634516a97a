package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Metric helpers are exercised against isolated registries; NewMetrics itself
// registers with the default registry and is constructed once in main.

func TestExecutionCounterShape(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_executions_total",
			Help: "Test execution counter",
		},
		[]string{"provider", "model", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("openai", "gpt-4o", "pass").Inc()
	counter.WithLabelValues("openai", "gpt-4o", "pass").Inc()
	counter.WithLabelValues("anthropic", "claude-sonnet-4-5", "error").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Errorf("label combinations = %d, want 2", count)
	}

	expected := `
		# HELP test_executions_total Test execution counter
		# TYPE test_executions_total counter
		test_executions_total{model="claude-sonnet-4-5",provider="anthropic",status="error"} 1
		test_executions_total{model="gpt-4o",provider="openai",status="pass"} 2
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestCacheLookupLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_cache_lookups_total",
			Help: "Test cache counter",
		},
		[]string{"result"},
	)
	registry.MustRegister(counter)

	for _, hit := range []bool{true, true, false} {
		result := "miss"
		if hit {
			result = "hit"
		}
		counter.WithLabelValues(result).Inc()
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hit count = %f, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss count = %f, want 1", got)
	}
}

func TestTokenAccounting(t *testing.T) {
	registry := prometheus.NewRegistry()
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_tokens_total",
			Help: "Test token counter",
		},
		[]string{"provider", "model", "type"},
	)
	registry.MustRegister(tokens)

	// Mirrors RecordProviderRequest's token handling: zero counts are skipped.
	record := func(promptTokens, completionTokens int) {
		if promptTokens > 0 {
			tokens.WithLabelValues("openai", "gpt-4o", "prompt").Add(float64(promptTokens))
		}
		if completionTokens > 0 {
			tokens.WithLabelValues("openai", "gpt-4o", "completion").Add(float64(completionTokens))
		}
	}
	record(120, 42)
	record(0, 0)
	record(10, 5)

	if got := testutil.ToFloat64(tokens.WithLabelValues("openai", "gpt-4o", "prompt")); got != 130 {
		t.Errorf("prompt tokens = %f, want 130", got)
	}
	if got := testutil.ToFloat64(tokens.WithLabelValues("openai", "gpt-4o", "completion")); got != 47 {
		t.Errorf("completion tokens = %f, want 47", got)
	}
}
