package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session module.
type Metrics struct {
	SessionsEstablished prometheus.Counter
	SessionsDenied      *prometheus.CounterVec
	SignOuts            prometheus.Counter
}

// New creates a new Metrics instance with all session module metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsEstablished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_sessions_established_total",
			Help: "Total number of sessions granted after recovery checks",
		}),
		SessionsDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_sessions_denied_total",
			Help: "Total number of session establishments denied, by reason",
		}, []string{"reason"}),
		SignOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_session_signouts_total",
			Help: "Total number of sign-out events processed",
		}),
	}
}

// IncrementEstablished records a granted session.
func (m *Metrics) IncrementEstablished() {
	m.SessionsEstablished.Inc()
}

// IncrementDenied records a denied establishment with its reason.
func (m *Metrics) IncrementDenied(reason string) {
	m.SessionsDenied.WithLabelValues(reason).Inc()
}

// IncrementSignOut records a processed sign-out.
func (m *Metrics) IncrementSignOut() {
	m.SignOuts.Inc()
}
