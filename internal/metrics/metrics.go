// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetches_total",
			Help: "Total number of source fetches, labeled by document kind and status code (0 for transport errors).",
		},
		[]string{"kind", "code"},
	)

	harvesterFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Histogram of source fetch latencies, labeled by document kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)

	harvesterStationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_stations_total",
			Help: "Total number of stations processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	harvesterReadingsStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_readings_stored_total",
			Help: "Total number of readings written by successful replaces.",
		},
	)

	harvesterRowsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_rows_rejected_total",
			Help: "Total number of export rows rejected, labeled by the failing column.",
		},
		[]string{"column"},
	)

	harvesterAmbiguousColumnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_ambiguous_columns_total",
			Help: "Total number of canonical fields resolved among several candidate headers.",
		},
		[]string{"column"},
	)

	harvesterRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_runs_total",
			Help: "Total number of harvest runs, labeled by final status.",
		},
		[]string{"status"},
	)

	harvesterLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_last_run_finished_timestamp_seconds",
			Help: "Unix time the most recent harvest run finished.",
		},
	)

	harvesterPacingDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_pacing_delay_seconds",
			Help:    "Histogram of pacing waits between stations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one source fetch.
func ObserveFetch(kind string, code int, duration time.Duration) {
	harvesterFetchesTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	if duration > 0 {
		harvesterFetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// ObserveStation increments the station counter for an outcome.
func ObserveStation(outcome string) {
	harvesterStationsTotal.WithLabelValues(outcome).Inc()
}

// AddReadingsStored adds to the stored readings counter.
func AddReadingsStored(n int) {
	if n > 0 {
		harvesterReadingsStoredTotal.Add(float64(n))
	}
}

// ObserveRejectedRow increments the rejected row counter for the failing column.
func ObserveRejectedRow(column string) {
	harvesterRowsRejectedTotal.WithLabelValues(column).Inc()
}

// ObserveAmbiguousColumn increments the ambiguous resolution counter.
func ObserveAmbiguousColumn(column string) {
	harvesterAmbiguousColumnsTotal.WithLabelValues(column).Inc()
}

// ObserveRun records a finished harvest run.
func ObserveRun(status string, finishedAt time.Time) {
	harvesterRunsTotal.WithLabelValues(status).Inc()
	harvesterLastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// ObservePacingDelay records the duration of a pacing wait.
func ObservePacingDelay(duration time.Duration) {
	harvesterPacingDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
