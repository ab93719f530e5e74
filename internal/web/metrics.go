package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/octobees/signup/internal/registration"
)

// Metrics counts controller outcomes.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics registers the signup collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_outcomes_total",
			Help: "Registration form operations by outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.outcomes)
	return m
}

func (m *Metrics) observe(operation string, outcome registration.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, string(outcome)).Inc()
}
