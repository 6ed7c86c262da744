package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the cancellation module.
type Metrics struct {
	Cancellations     prometheus.Counter
	GatewayFailures   prometheus.Counter
	LaggingTombstones prometheus.Counter
	SagaDuration      prometheus.Histogram
}

// New creates a new Metrics instance with all cancellation module metrics registered.
func New() *Metrics {
	return &Metrics{
		Cancellations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_cancellations_total",
			Help: "Total number of subscription cancellations acknowledged by the gateway",
		}),
		GatewayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_cancellation_gateway_failures_total",
			Help: "Total number of cancellations aborted because the gateway call failed",
		}),
		LaggingTombstones: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_cancellation_lagging_tombstones_total",
			Help: "Total number of local tombstone writes that failed after the gateway acknowledged",
		}),
		SagaDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brokerhub_cancellation_saga_duration_seconds",
			Help:    "Duration of the cancellation saga including the gateway round trip",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementCancelled records a gateway-acknowledged cancellation.
func (m *Metrics) IncrementCancelled() {
	m.Cancellations.Inc()
}

// IncrementGatewayFailure records an aborted cancellation.
func (m *Metrics) IncrementGatewayFailure() {
	m.GatewayFailures.Inc()
}

// IncrementLaggingTombstone records a tombstone write that must be retried.
func (m *Metrics) IncrementLaggingTombstone() {
	m.LaggingTombstones.Inc()
}

// ObserveSaga records the total saga duration.
// Call with time.Now() from the start of the operation.
func (m *Metrics) ObserveSaga(start time.Time) {
	m.SagaDuration.Observe(time.Since(start).Seconds())
}
