package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_admin",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Requests sent to the identity API by method and status code.",
	}, []string{"method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "identity_admin",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of identity API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)
