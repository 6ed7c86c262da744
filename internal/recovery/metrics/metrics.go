package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the recovery module.
type Metrics struct {
	RecoveryRuns       *prometheus.CounterVec
	OwnerUsersRepaired prometheus.Counter
}

// New creates a new Metrics instance with all recovery module metrics registered.
func New() *Metrics {
	return &Metrics{
		RecoveryRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_recovery_runs_total",
			Help: "Total number of recovery runs at session establishment, by outcome",
		}, []string{"outcome"}),
		OwnerUsersRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_recovery_owner_users_repaired_total",
			Help: "Total number of owner-user rows recreated by the recovery agent",
		}),
	}
}

// IncrementRun records a recovery run with its outcome tag.
func (m *Metrics) IncrementRun(outcome string) {
	m.RecoveryRuns.WithLabelValues(outcome).Inc()
}

// IncrementRepaired records a recreated owner-user row.
func (m *Metrics) IncrementRepaired() {
	m.OwnerUsersRepaired.Inc()
}
