// Package metrics defines the Prometheus instrumentation for the polling
// coordinator. The distinction between PollersCreated and
// SubscribersAttached is the primary operator-visible signal that request
// deduplication is working.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PollersCreated counts new shared pollers created per resource kind.
	PollersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit511_pollers_created_total",
			Help: "Shared pollers created for a resource key",
		},
		[]string{"kind"},
	)

	// SubscribersAttached counts registrations that reused an existing
	// poller instead of creating one.
	SubscribersAttached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit511_subscribers_attached_total",
			Help: "Registrations attached to an already-running poller",
		},
		[]string{"kind"},
	)

	// ActivePollers tracks the number of running pollers.
	ActivePollers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transit511_active_pollers",
			Help: "Currently running shared pollers",
		},
	)

	// Fetches counts fetch attempts by outcome ("success" or the failure
	// kind reported by the API client).
	Fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit511_fetches_total",
			Help: "Fetch attempts by outcome",
		},
		[]string{"result"},
	)

	// BudgetDeferred counts fetches skipped because the hourly request
	// budget for the credential was exhausted.
	BudgetDeferred = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transit511_budget_deferred_total",
			Help: "Fetch attempts deferred by the local rate budget",
		},
	)

	// BudgetRemaining tracks requests left in the credential's rolling
	// hour window.
	BudgetRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transit511_budget_remaining",
			Help: "Requests remaining in the rolling hour window",
		},
		[]string{"credential"},
	)
)

func init() {
	prometheus.MustRegister(PollersCreated)
	prometheus.MustRegister(SubscribersAttached)
	prometheus.MustRegister(ActivePollers)
	prometheus.MustRegister(Fetches)
	prometheus.MustRegister(BudgetDeferred)
	prometheus.MustRegister(BudgetRemaining)
}
