package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publishing path.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	PersistFailures prometheus.Counter
}

// NewMetrics creates a Metrics instance with audit publisher metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_audit_events_emitted_total",
			Help: "Total number of audit events accepted for persistence",
		}, []string{"category"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_audit_events_dropped_total",
			Help: "Total number of audit events dropped before persistence",
		}, []string{"reason"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
	}
}

func (m *Metrics) IncEmitted(category string) {
	m.Emitted.WithLabelValues(category).Inc()
}

func (m *Metrics) IncDropped(reason string) {
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}
