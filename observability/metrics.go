package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SchedulesGenerated counts generated schedules by loan type.
	SchedulesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_engine_schedules_generated_total",
			Help: "Schedules generated, by loan type",
		},
		[]string{"loan_type"},
	)

	// Repayments counts early repayment operations by policy and outcome.
	Repayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_engine_early_repayments_total",
			Help: "Early repayment previews and confirmations",
		},
		[]string{"operation", "policy", "outcome"},
	)

	// ConcurrentModifications counts confirmations rejected on a stale revision.
	ConcurrentModifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_engine_concurrent_modifications_total",
			Help: "Writes rejected because the loan revision changed",
		},
	)

	// PaymentsRecorded counts installments marked paid.
	PaymentsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_engine_payments_recorded_total",
			Help: "Installments marked paid",
		},
	)

	// Simulations counts simulations and scenario comparisons.
	Simulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_engine_simulations_total",
			Help: "Simulations run, by kind",
		},
		[]string{"kind", "outcome"},
	)

	// OverdueMaterialized counts installments flipped to overdue in storage.
	OverdueMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_engine_overdue_materialized_total",
			Help: "Stored installments marked overdue by the scheduler",
		},
	)

	// EventsPublished counts domain events by type and outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_engine_events_published_total",
			Help: "Domain events handed to the publisher",
		},
		[]string{"event_type", "outcome"},
	)
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Outcome maps an error to its label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
