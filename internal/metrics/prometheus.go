// Package metrics holds the HTTP-layer Prometheus collectors. Queue, worker
// and processor collectors live next to the code that updates them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_panics_total",
			Help: "Total number of recovered handler panics",
		},
	)
)
