package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IndexerMetrics holds all Prometheus metrics for the CSV indexer.
type IndexerMetrics struct {
	ObjectsTotal     *prometheus.CounterVec
	RowsTotal        *prometheus.CounterVec
	BytesTotal       prometheus.Counter
	IndexDuration    prometheus.Histogram
	DeadLettersTotal *prometheus.CounterVec
	WALActive        prometheus.Gauge
}

// NewIndexerMetrics initializes the metrics and registers them with reg.
func NewIndexerMetrics(reg prometheus.Registerer) *IndexerMetrics {
	factory := promauto.With(reg)
	return &IndexerMetrics{
		ObjectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csv_indexer",
			Subsystem: "ingest",
			Name:      "objects_total",
			Help:      "Total number of objects handled by status.",
		}, []string{"status"}), // status: ok, error
		RowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csv_indexer",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of CSV data rows by outcome.",
		}, []string{"status"}), // status: indexed, error_parse, error_index
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "csv_indexer",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of object bytes fetched.",
		}),
		IndexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "csv_indexer",
			Subsystem: "search",
			Name:      "index_duration_seconds",
			Help:      "Latency of single-document index requests, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		DeadLettersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csv_indexer",
			Subsystem: "deadletter",
			Name:      "entries_total",
			Help:      "Total number of dead letters by sink.",
		}, []string{"sink"}), // sink: redis, wal, dropped
		WALActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "csv_indexer",
			Subsystem: "deadletter",
			Name:      "wal_active_gauge",
			Help:      "Indicates if the dead-letter WAL is currently active (1 for active, 0 for inactive).",
		}),
	}
}
