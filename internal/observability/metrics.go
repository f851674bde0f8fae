package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crime_stats"

// Metrics holds the Prometheus counters, histograms, and gauges for the query
// pipeline and the ingest loader.
type Metrics struct {
	Queries *prometheus.CounterVec // labels: kind={totals,map,categories}, outcome={ok,degraded,rejected}

	// Memoization metrics.
	MemoLookups *prometheus.CounterVec // labels: cache, result={hit,miss}
	MemoSize    *prometheus.GaugeVec   // labels: cache

	// Record source metrics.
	RetrievalRequests *prometheus.CounterVec   // labels: backend={live,store}, outcome={success,empty,error}
	RetrievalDuration *prometheus.HistogramVec // labels: backend
	RetrievalRetries  *prometheus.CounterVec   // labels: kind

	ReferenceLocations prometheus.Gauge

	// Ingest metrics.
	RecordsPublished prometheus.Counter
	RowsUpserted     *prometheus.CounterVec // labels: table
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Queries,
		m.MemoLookups,
		m.MemoSize,
		m.RetrievalRequests,
		m.RetrievalDuration,
		m.RetrievalRetries,
		m.ReferenceLocations,
		m.RecordsPublished,
		m.RowsUpserted,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Pipeline queries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		MemoLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_lookups_total",
			Help:      "Memoization cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		MemoSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memo_entries",
			Help:      "Values stored per memoization cache.",
		}, []string{"cache"}),
		RetrievalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_requests_total",
			Help:      "Record source calls by backend and outcome.",
		}, []string{"backend", "outcome"}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Record source call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend"}),
		RetrievalRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_retries_total",
			Help:      "Retried retrievals by query kind.",
		}, []string{"kind"}),
		ReferenceLocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_locations",
			Help:      "Locations loaded from the reference table.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Incident records written to the Kafka topic by ingest.",
		}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Aggregate rows written by ingest, by table.",
		}, []string{"table"}),
	}
}
