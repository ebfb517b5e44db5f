package metrics

import "github.com/prometheus/client_golang/prometheus"

// Message bus and pipeline Prometheus metrics.
var (
	BusDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_deliveries_total",
			Help:      "Deliveries handled per queue by outcome",
		},
		[]string{"queue", "outcome"}, // "acked" / "retried" / "dead_lettered" / "requeued"
	)

	BusPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_published_total",
			Help:      "Events published per routing key",
		},
		[]string{"routing_key", "status"},
	)

	BusHandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_handler_duration_seconds",
			Help:      "Delivery handler duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"queue"},
	)

	BusReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_reconnects_total",
			Help:      "Consume loop reconnect attempts",
		},
		[]string{"queue"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Ingestion and query pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"pipeline", "status"}, // pipeline: "ingest" / "query"
	)

	ChunksStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Document chunks written to the vector store",
		},
	)
)

var registered bool

// Register registers provider, bus, pipeline and admin HTTP metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderTokensTotal,
		ProviderErrorsTotal,
		ProviderRetriesTotal,
		EmbeddingCacheTotal,
		BusDeliveriesTotal,
		BusPublishedTotal,
		BusHandlerDuration,
		BusReconnectsTotal,
		PipelineDuration,
		ChunksStoredTotal,
		httpRequestDuration,
		httpRequestsTotal,
	)
	registered = true
}
