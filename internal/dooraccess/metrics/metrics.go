// Package metrics provides Prometheus metrics for door admission.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the door admission counters.
type Metrics struct {
	AttemptsStartedTotal prometheus.Counter
	DecisionsTotal       *prometheus.CounterVec // by outcome
	PendingPollsTotal    prometheus.Counter
	AttemptsExpiredTotal prometheus.Counter

	VerifierRequestDurationSeconds *prometheus.HistogramVec // by operation
}

// New creates a Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		AttemptsStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_door_attempts_started_total",
			Help: "Total number of door admission attempts started",
		}),
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staykey_door_decisions_total",
			Help: "Total number of door admission decisions by outcome",
		}, []string{"outcome"}),
		PendingPollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_door_pending_polls_total",
			Help: "Total number of result polls answered while no presentation was observed",
		}),
		AttemptsExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_door_attempts_expired_total",
			Help: "Total number of attempts whose validity window elapsed undecided",
		}),
		VerifierRequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staykey_verifier_request_duration_seconds",
			Help:    "Duration of verifier gateway round trips by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
}

// RecordAttemptStarted increments the started counter.
func (m *Metrics) RecordAttemptStarted() { m.AttemptsStartedTotal.Inc() }

// RecordDecision increments the decision counter for an outcome.
func (m *Metrics) RecordDecision(outcome string) {
	m.DecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPendingPoll increments the pending poll counter.
func (m *Metrics) RecordPendingPoll() { m.PendingPollsTotal.Inc() }

// RecordAttemptExpired increments the expired counter.
func (m *Metrics) RecordAttemptExpired() { m.AttemptsExpiredTotal.Inc() }

// ObserveVerifierRequest records one verifier round trip duration.
func (m *Metrics) ObserveVerifierRequest(operation string, seconds float64) {
	m.VerifierRequestDurationSeconds.WithLabelValues(operation).Observe(seconds)
}
