package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected       prometheus.Counter
	StoreErrors    prometheus.Counter
	FallbackChecks prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseverify_ratelimit_rejected_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseverify_ratelimit_store_errors_total",
			Help: "Total number of failed checks against the primary rate limit store",
		}),
		FallbackChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseverify_ratelimit_fallback_checks_total",
			Help: "Total number of checks served by the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementFallbackChecks() {
	if m == nil {
		return
	}
	m.FallbackChecks.Inc()
}
