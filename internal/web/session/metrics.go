package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a refresh.
const (
	OutcomeSuccess     = "success"
	OutcomeMissing     = "missing_token"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_admin",
		Subsystem: "session",
		Name:      "refresh_total",
		Help:      "Session refreshes by outcome.",
	}, []string{"outcome"})

	refreshShared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "identity_admin",
		Subsystem: "session",
		Name:      "refresh_shared_total",
		Help:      "Refreshes answered by a call already in flight.",
	})
)

// ObserveRefresh counts a refresh outcome.
func ObserveRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}
