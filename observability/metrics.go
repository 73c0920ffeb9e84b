// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the nosdav server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nosdav_http_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nosdav_http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// UploadBytesTotal counts bytes accepted by successful uploads.
	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nosdav_upload_bytes_total",
			Help: "Uploaded bytes",
		},
	)

	// RejectionsTotal counts rejected requests, reads and writes, by reason.
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nosdav_rejections_total",
			Help: "Rejected requests",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		UploadBytesTotal,
		RejectionsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
