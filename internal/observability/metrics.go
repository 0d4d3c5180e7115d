package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RecordsTranscoded prometheus.Counter
	RecordsSkipped    prometheus.Counter
	MonthsAggregated  prometheus.Counter
	RowsWritten       prometheus.Counter
	DecodeErrors      prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Run metrics.
	Runs          *prometheus.CounterVec // labels: outcome={success,<stage>_error}
	RunDuration   prometheus.Histogram
	LastSuccess   prometheus.Gauge
	RowsPublished prometheus.Counter

	// Retrieval metrics.
	FetchDuration *prometheus.HistogramVec // labels: outcome={success,error}
	FetchBytes    prometheus.Counter

	// Conversion cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsTranscoded,
		m.RecordsSkipped,
		m.MonthsAggregated,
		m.RowsWritten,
		m.DecodeErrors,
		m.PipelineRunning,
		m.Runs,
		m.RunDuration,
		m.LastSuccess,
		m.RowsPublished,
		m.FetchDuration,
		m.FetchBytes,
		m.CacheLookups,
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
		RecordsTranscoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "records_transcoded_total",
			Help:      "Total fixed-width records converted to the intermediate form.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "records_skipped_total",
			Help:      "Total malformed fixed-width records skipped during transcoding.",
		}),
		MonthsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "months_aggregated_total",
			Help:      "Total station-months grouped by the aggregator.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "rows_written_total",
			Help:      "Total day rows written to output tables.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "decode_errors_total",
			Help:      "Total aggregation passes aborted by undecodable values.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghcn_etl",
			Name:      "pipeline_running",
			Help:      "Number of pipeline runs currently in progress.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ghcn_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-transcode-aggregate-write run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghcn_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "rows_published_total",
			Help:      "Total day rows published to the sink topic.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ghcn_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Station file download duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		FetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "fetch_bytes_total",
			Help:      "Total bytes downloaded from the archive.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghcn_etl",
			Name:      "cache_lookups_total",
			Help:      "Conversion cache lookups by result.",
		}, []string{"result"}),
	}
}
