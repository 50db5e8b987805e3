package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every collector of the service.
const Namespace = "cvsearch"

// Search and ingestion Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by the method that answered and outcome",
		},
		[]string{"method", "outcome"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_fallbacks_total",
			Help:      "Vector searches that fell back to text search",
		},
		[]string{"reason"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds by method",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_items_total",
			Help:      "Ingested records by status",
		},
		[]string{"status"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and ingestion metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchFallbacksTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(IngestItemsTotal)
	searchMetricsRegistered = true
}
