package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ragworker"

// AI provider Prometheus metrics. Operation is "chat" or "embedding".
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of AI provider requests",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "AI provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "operation"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens reported by AI providers",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion"
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total AI provider errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "AI provider calls retried after a failed attempt",
		},
		[]string{"provider", "operation"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// RecordProviderCall records one backend round trip.
func RecordProviderCall(provider, model, operation string, seconds float64, err error, errorType string) {
	if err != nil {
		ProviderRequestsTotal.WithLabelValues(provider, model, operation, "error").Inc()
		ProviderErrorsTotal.WithLabelValues(provider, model, errorType).Inc()
		return
	}
	ProviderRequestsTotal.WithLabelValues(provider, model, operation, "success").Inc()
	ProviderRequestDuration.WithLabelValues(provider, model, operation).Observe(seconds)
}

// RecordTokens adds reported usage. Zero counts are unknown and skipped.
func RecordTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}
