package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of the auth engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	logins         *prometheus.CounterVec
	gateDecisions  *prometheus.CounterVec
	sessionsIssued prometheus.Counter
	sessionsGone   prometheus.Counter
}

// NewMetrics registers collectors on reg. When reg is nil a private
// registry is created, which keeps tests isolated.
func NewMetrics(reg *prometheus.Registry, registry *SessionRegistry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_auth_gate_decisions_total",
			Help: "Request gate terminal states.",
		}, []string{"result"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lms_auth_sessions_issued_total",
			Help: "Sessions registered by the credential issuer.",
		}),
		sessionsGone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lms_auth_sessions_revoked_total",
			Help: "Sessions removed by revocation.",
		}),
	}

	reg.MustRegister(m.logins, m.gateDecisions, m.sessionsIssued, m.sessionsGone)

	if registry != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lms_auth_sessions_active",
			Help: "Sessions currently held by the in-process registry.",
		}, func() float64 {
			return float64(registry.Count())
		}))
	}

	return m
}

// Registry exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) gateDecision(result string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(result).Inc()
}

func (m *Metrics) sessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

func (m *Metrics) sessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsGone.Add(float64(n))
}
