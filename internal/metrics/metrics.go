// Package metrics exports the Prometheus gauges and counters the
// reconciler and gateway record, wired through controller-runtime's
// shared registry the way the teacher's controller/pkg/metrics does.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Reconciliations tracks reconciliation count and result.
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whistler_instance_reconciliations_total",
			Help: "Total number of WhistlerInstance reconciliations",
		},
		[]string{"namespace", "result"},
	)

	// ReconciliationDuration tracks reconciliation latency.
	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whistler_instance_reconciliation_duration_seconds",
			Help:    "Duration of WhistlerInstance reconciliations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	// SessionsByOwner tracks active gateway sessions per owner.
	SessionsByOwner = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whistler_gateway_sessions_active",
			Help: "Number of active SSH sessions by owner",
		},
		[]string{"owner"},
	)

	// ForwardChannelDecisions tracks direct-tcpip open attempts by outcome.
	ForwardChannelDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whistler_gateway_forward_channel_total",
			Help: "Direct-tcpip forward-channel requests by outcome",
		},
		[]string{"outcome"}, // allowed, denied_host, denied_no_instance, denied_not_running
	)

	// AuthOutcomes tracks authentication attempts by outcome.
	AuthOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whistler_gateway_auth_total",
			Help: "SSH authentication attempts by outcome",
		},
		[]string{"outcome"}, // accepted, rejected
	)
)

func init() {
	ctrlmetrics.Registry.MustRegister(
		Reconciliations,
		ReconciliationDuration,
		SessionsByOwner,
		ForwardChannelDecisions,
		AuthOutcomes,
	)
}

// RecordReconciliation records the outcome of a single reconciliation.
func RecordReconciliation(namespace, result string) {
	Reconciliations.WithLabelValues(namespace, result).Inc()
}

// ObserveReconciliationDuration records how long a reconciliation took.
func ObserveReconciliationDuration(namespace string, seconds float64) {
	ReconciliationDuration.WithLabelValues(namespace).Observe(seconds)
}

// RecordAuthOutcome records one SSH authentication attempt.
func RecordAuthOutcome(outcome string) {
	AuthOutcomes.WithLabelValues(outcome).Inc()
}

// RecordForwardDecision records one direct-tcpip forward-channel policy decision.
func RecordForwardDecision(outcome string) {
	ForwardChannelDecisions.WithLabelValues(outcome).Inc()
}

// SessionStarted increments the active-session gauge for owner.
func SessionStarted(owner string) {
	SessionsByOwner.WithLabelValues(owner).Inc()
}

// SessionEnded decrements the active-session gauge for owner.
func SessionEnded(owner string) {
	SessionsByOwner.WithLabelValues(owner).Dec()
}
