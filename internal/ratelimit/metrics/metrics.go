package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsBlocked *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RequestsBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_ratelimit_requests_blocked_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"route"}),
	}
}

func (m *Metrics) IncrementBlocked(route string) {
	m.RequestsBlocked.WithLabelValues(route).Inc()
}
