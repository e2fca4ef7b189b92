package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for case verification and issuance.
type Metrics struct {
	// Verification outcomes by outcome code
	VerificationOutcome *prometheus.CounterVec

	// Issued numbers, split by whether the call was an idempotent replay
	Issued *prometheus.CounterVec

	// Lifecycle transitions by target status
	Transitions *prometheus.CounterVec

	// Issuance audit writes that failed after commit
	AuditFailures prometheus.Counter

	IssueLatency prometheus.Histogram
}

// New registers the case metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		VerificationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseverify_verification_outcomes_total",
			Help: "Total verification outcomes by outcome code",
		}, []string{"outcome"}),

		Issued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseverify_nssf_issued_total",
			Help: "Total NSSF issuance calls that returned a number",
		}, []string{"replay"}), // replay: "true" when the case already held a number

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseverify_case_transitions_total",
			Help: "Total case lifecycle transitions by target status",
		}, []string{"status"}),

		AuditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseverify_audit_failures_total",
			Help: "Issuance audit entries that could not be written after commit",
		}),

		IssueLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseverify_issue_duration_seconds",
			Help:    "Duration of NSSF issuance including number generation and commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementIssued records a returned number; replay marks idempotent calls.
func (m *Metrics) IncrementIssued(replay bool) {
	if m == nil {
		return
	}
	label := "false"
	if replay {
		label = "true"
	}
	m.Issued.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementAuditFailure() {
	if m != nil {
		m.AuditFailures.Inc()
	}
}

func (m *Metrics) ObserveIssueLatency(d time.Duration) {
	if m != nil {
		m.IssueLatency.Observe(d.Seconds())
	}
}
