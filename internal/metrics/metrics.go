package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger decision outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomePartial     = "partial"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnknownCode = "unknown_code"
	OutcomeInvalid     = "invalid"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// LedgerDecisions counts maintenance submissions by operation (submit, update) and outcome.
	LedgerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "ledger",
		Name:      "decisions_total",
		Help:      "Maintenance submission decisions by operation and outcome.",
	}, []string{"operation", "outcome"})

	// FuelLitres counts litres recorded by movement (drum_in, drum_out, truck_fuel).
	FuelLitres = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "fuel",
		Name:      "litres_recorded_total",
		Help:      "Litres entered into the oil drum and truck fuel ledgers.",
	}, []string{"movement"})

	RunningHoursRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "ledger",
		Name:      "running_hours_recomputes_total",
		Help:      "Running-hours cache rebuilds.",
	})
)
