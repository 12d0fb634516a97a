package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting harness metrics.
//
// Built on Prometheus, it tracks:
//   - Execution outcomes per provider/model (pass, fail, error)
//   - Provider API call latency and token consumption
//   - Cache effectiveness (hits vs misses)
//   - Retry pressure and rate-limit wait time
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordCacheLookup(true)
//	metrics.RecordProviderRequest("openai", "gpt-4o", "success", 1.21, 120, 42)
type Metrics struct {
	// ExecutionCounter counts completed executions.
	// Labels: provider, model, status (pass|fail|error)
	ExecutionCounter *prometheus.CounterVec

	// ProviderRequestDuration measures provider API latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts provider API calls.
	// Labels: provider, model, status (success|error)
	ProviderRequestCounter *prometheus.CounterVec

	// TokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	TokensUsed *prometheus.CounterVec

	// CacheLookups counts response cache lookups.
	// Labels: result (hit|miss)
	CacheLookups *prometheus.CounterVec

	// RetryCounter counts retry attempts beyond the first try.
	// Labels: provider
	RetryCounter *prometheus.CounterVec

	// RateLimitWait measures time spent blocked on admission in seconds.
	// Labels: provider
	// Buckets: 0.1s, 0.5s, 1s, 5s, 15s, 30s, 60s, 120s
	RateLimitWait *prometheus.HistogramVec

	// RunDuration measures whole-run wall time in seconds.
	// Buckets: 1s, 5s, 15s, 60s, 300s, 900s, 3600s
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// process start; promauto registers with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crucible_executions_total",
				Help: "Total number of completed executions by provider, model, and outcome",
			},
			[]string{"provider", "model", "status"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crucible_provider_request_duration_seconds",
				Help:    "Duration of provider API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crucible_provider_requests_total",
				Help: "Total number of provider API requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		TokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crucible_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		CacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crucible_cache_lookups_total",
				Help: "Total number of response cache lookups by result",
			},
			[]string{"result"},
		),

		RetryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crucible_retries_total",
				Help: "Total number of retry attempts by provider",
			},
			[]string{"provider"},
		),

		RateLimitWait: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crucible_ratelimit_wait_seconds",
				Help:    "Time spent blocked on rate-limit admission in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"provider"},
		),

		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crucible_run_duration_seconds",
				Help:    "Wall-clock duration of evaluation runs in seconds",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		),
	}
}

// RecordExecution counts one finished execution with its outcome.
//
// Example:
//
//	metrics.RecordExecution("anthropic", "claude-sonnet-4-5", "pass")
func (m *Metrics) RecordExecution(provider, model, status string) {
	m.ExecutionCounter.WithLabelValues(provider, model, status).Inc()
}

// RecordProviderRequest records one provider API call.
//
// Example:
//
//	start := time.Now()
//	// ... call the provider ...
//	metrics.RecordProviderRequest("openai", "gpt-4o", "success", time.Since(start).Seconds(), 120, 42)
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordCacheLookup counts one cache lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRetries adds the retries consumed by one execution.
func (m *Metrics) RecordRetries(provider string, retries int) {
	if retries > 0 {
		m.RetryCounter.WithLabelValues(provider).Add(float64(retries))
	}
}

// RecordRateLimitWait records time spent blocked before admission.
func (m *Metrics) RecordRateLimitWait(provider string, seconds float64) {
	m.RateLimitWait.WithLabelValues(provider).Observe(seconds)
}

// RecordRunDuration records one run's wall-clock time.
func (m *Metrics) RecordRunDuration(seconds float64) {
	m.RunDuration.Observe(seconds)
}
