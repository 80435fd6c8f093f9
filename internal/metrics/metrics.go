// Package metrics holds the Prometheus instruments shared by the pipeline,
// the routing adapter, and the upload stage.  All collectors register with
// the global registry, so mounting promhttp.Handler() is enough to expose
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Requests served, by method, route pattern, and status.",
		}, []string{"method", "route", "status"})

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Wall time from routing to response, by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"})

	StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_stage_failures_total",
			Help: "Failures handed to the error stage, by kind.",
		}, []string{"kind"})

	UploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_upload_bytes_total",
			Help: "Bytes buffered from multipart uploads.",
		})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StageFailures,
		UploadBytes,
	)
}
