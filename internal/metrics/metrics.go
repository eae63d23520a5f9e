package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route pattern and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owl_location_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owl_location_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// TreesMaterialized counts tree expansions by strategy and outcome.
	TreesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owl_location_trees_materialized_total",
			Help: "Total number of location trees materialized",
		},
		[]string{"strategy", "status"},
	)
	// TreeNodes is the size distribution of materialized trees.
	TreeNodes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owl_location_tree_nodes",
			Help:    "Number of nodes in a materialized location tree",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"strategy"},
	)
	// EventsPublished counts location change events by backend and status.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owl_location_events_published_total",
			Help: "Total number of location change events published",
		},
		[]string{"backend", "status"},
	)
)

// Status renders an error as a metric status label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
