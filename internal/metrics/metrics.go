// Package metrics holds the process-wide prometheus collectors for upstream
// calls, batched range fetches, ingestion and inference. Helpers are no-ops
// until Init has been called.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pvforecast_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
)

var (
	registerOnce sync.Once

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	fetchWindows *prometheus.CounterVec

	ingestedRows *prometheus.CounterVec

	predictionTotal   *prometheus.CounterVec
	predictionLatency prometheus.Histogram
)

// Init registers the collectors with reg. Subsequent calls do nothing.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Total upstream API requests by source and result",
			},
			[]string{"source", "result"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Upstream API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		fetchWindows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_windows_total",
				Help: "Batched fetch windows by result",
			},
			[]string{"result"},
		)
		ingestedRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingested_rows_total",
				Help: "Rows written to storage by table",
			},
			[]string{"table"},
		)
		predictionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "predictions_total",
				Help: "Prediction runs by result",
			},
			[]string{"result"},
		)
		predictionLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "prediction_latency_seconds",
				Help:    "Model inference latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		reg.MustRegister(
			upstreamRequests,
			upstreamLatency,
			fetchWindows,
			ingestedRows,
			predictionTotal,
			predictionLatency,
		)
	})
}

func ObserveUpstream(source, result string, duration time.Duration) {
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(source, result).Inc()
	}
	if upstreamLatency != nil {
		upstreamLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

func IncFetchWindow(result string) {
	if fetchWindows != nil {
		fetchWindows.WithLabelValues(result).Inc()
	}
}

func AddIngestedRows(table string, n int) {
	if n <= 0 {
		return
	}
	if ingestedRows != nil {
		ingestedRows.WithLabelValues(table).Add(float64(n))
	}
}

func ObservePrediction(result string, duration time.Duration) {
	if predictionTotal != nil {
		predictionTotal.WithLabelValues(result).Inc()
	}
	if predictionLatency != nil && result == ResultSuccess {
		predictionLatency.Observe(duration.Seconds())
	}
}
