// Package metrics exposes the prometheus collectors of the subset service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parslice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parslice_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// InFlight is the number of pipelines currently running.
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parslice_pipelines_in_flight",
			Help: "Number of subset pipelines currently running",
		},
	)
	// PipelineDuration is the time spent running a pipeline.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parslice_pipeline_duration_seconds",
			Help:    "Subset pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)
	// RowsScanned counts rows read from source files.
	RowsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parslice_rows_scanned_total",
			Help: "Total number of source rows scanned",
		},
	)
	// RowsWritten counts rows written to results.
	RowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parslice_rows_written_total",
			Help: "Total number of rows written to results",
		},
	)
	// BytesWritten counts result bytes returned to clients.
	BytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parslice_result_bytes_total",
			Help: "Total size of returned results in bytes",
		},
	)
	// FailuresTotal counts failed pipelines by error kind.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parslice_pipeline_failures_total",
			Help: "Total number of failed subset pipelines",
		},
		[]string{"kind"},
	)
)

// ObserveRun records the statistics of a successful pipeline run.
func ObserveRun(seconds float64, scanned, written int64, bytes int) {
	PipelineDuration.Observe(seconds)
	RowsScanned.Add(float64(scanned))
	RowsWritten.Add(float64(written))
	BytesWritten.Add(float64(bytes))
}

// ObserveFailure records a failed pipeline run.
func ObserveFailure(kind string) {
	FailuresTotal.WithLabelValues(kind).Inc()
}
