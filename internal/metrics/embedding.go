package metrics

import "github.com/prometheus/client_golang/prometheus"

const embeddingSubsystem = "embedding"

// Embedding provider, cache and budget metrics. Document and query
// embeddings share the collectors; the provider label tells backends apart.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "requests_total",
			Help:      "Embedding provider calls by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Embedding provider latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "tokens_total",
			Help:      "Tokens billed by the embedding provider",
		},
		[]string{"provider", "model", "type"}, // type: prompt | total
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "errors_total",
			Help:      "Embedding failures by cause",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "budget_tokens_remaining",
			Help:      "Tokens left in the current budget period",
		},
		[]string{"provider", "period"}, // period: day | month
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: embeddingSubsystem,
			Name:      "cache_total",
			Help:      "Embedding cache lookups for record and query text",
		},
		[]string{"result"}, // hit | miss
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers the embedding collectors. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingBudgetTokensRemaining,
		EmbeddingCacheTotal,
	)
	embMetricsRegistered = true
}
