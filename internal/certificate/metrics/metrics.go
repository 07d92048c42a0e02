// Package metrics provides Prometheus metrics for the certificate
// lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the certificate lifecycle counters.
type Metrics struct {
	IssuedTotal      prometheus.Counter
	IssueFailedTotal *prometheus.CounterVec // by error code
	ClaimedTotal     prometheus.Counter
	RevokedTotal     *prometheus.CounterVec // by revoker reason
	ExpiredTotal     prometheus.Counter

	IssuerRequestDurationSeconds *prometheus.HistogramVec // by operation
}

// New creates a Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		IssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_certificates_issued_total",
			Help: "Total number of certificates issued as pending",
		}),
		IssueFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staykey_certificate_issue_failures_total",
			Help: "Total number of failed issuance attempts by error code",
		}, []string{"code"}),
		ClaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_certificates_claimed_total",
			Help: "Total number of certificates observed as claimed",
		}),
		RevokedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staykey_certificates_revoked_total",
			Help: "Total number of certificates revoked by permission reason",
		}, []string{"reason"}),
		ExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staykey_certificates_expired_total",
			Help: "Total number of certificates flipped to expired",
		}),
		IssuerRequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staykey_issuer_request_duration_seconds",
			Help:    "Duration of issuer gateway round trips by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
}

// RecordIssued increments the issued counter.
func (m *Metrics) RecordIssued() { m.IssuedTotal.Inc() }

// RecordIssueFailure increments the failure counter for an error code.
func (m *Metrics) RecordIssueFailure(code string) {
	m.IssueFailedTotal.WithLabelValues(code).Inc()
}

// RecordClaimed increments the claimed counter.
func (m *Metrics) RecordClaimed() { m.ClaimedTotal.Inc() }

// RecordRevoked increments the revoked counter for a permission reason.
func (m *Metrics) RecordRevoked(reason string) {
	m.RevokedTotal.WithLabelValues(reason).Inc()
}

// RecordExpired increments the expired counter.
func (m *Metrics) RecordExpired() { m.ExpiredTotal.Inc() }

// ObserveIssuerRequest records one issuer round trip duration.
func (m *Metrics) ObserveIssuerRequest(operation string, seconds float64) {
	m.IssuerRequestDurationSeconds.WithLabelValues(operation).Observe(seconds)
}
