// Package metrics registers the daemon's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesDispatched counts router dispatches by route, type and outcome.
	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_messages_dispatched_total",
		Help: "Messages dispatched through the router.",
	}, []string{"route", "type", "outcome"})

	// PendingApprovals tracks currently pending consent requests per queue.
	PendingApprovals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wallet_pending_approvals",
		Help: "Currently pending consent requests.",
	}, []string{"queue"})

	// ApprovalsResolved counts settled consent requests per queue and outcome.
	ApprovalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_approvals_resolved_total",
		Help: "Consent requests resolved, by outcome (approved, rejected, timeout, cancelled).",
	}, []string{"queue", "outcome"})

	// AutoLocks counts inactivity-triggered locks.
	AutoLocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_auto_locks_total",
		Help: "Locks triggered by the inactivity supervisor.",
	})
)

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
