package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedcal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedcal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedcal_resolutions_total",
			Help: "Handle resolutions by result",
		},
		[]string{"result"},
	)

	followMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedcal_follow_mutations_total",
			Help: "Follow and unfollow requests by kind and result",
		},
		[]string{"action", "kind", "result"},
	)
)
