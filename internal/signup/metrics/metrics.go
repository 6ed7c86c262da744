package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the signup module.
// Tracks saga outcomes, validation rejections and critical path durations.
type Metrics struct {
	SignupsStarted       prometheus.Counter
	SignupsSucceeded     prometheus.Counter
	SignupsCompensated   prometheus.Counter
	ValidationRejections *prometheus.CounterVec
	SagaDuration         prometheus.Histogram
}

// New creates a new Metrics instance with all signup module metrics registered.
func New() *Metrics {
	return &Metrics{
		SignupsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_signups_started_total",
			Help: "Total number of signup sagas started",
		}),
		SignupsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_signups_succeeded_total",
			Help: "Total number of signup sagas that completed all steps",
		}),
		SignupsCompensated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brokerhub_signups_compensated_total",
			Help: "Total number of signup sagas rolled back after a step failure",
		}),
		ValidationRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerhub_signup_validation_rejections_total",
			Help: "Total number of signups rejected by pre-flight validation, by reason",
		}, []string{"reason"}),
		SagaDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brokerhub_signup_saga_duration_seconds",
			Help:    "Duration of the signup saga (validation through subscription creation)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementStarted records a signup saga entering step 1.
func (m *Metrics) IncrementStarted() {
	m.SignupsStarted.Inc()
}

// IncrementSucceeded records a signup saga completing every step.
func (m *Metrics) IncrementSucceeded() {
	m.SignupsSucceeded.Inc()
}

// IncrementCompensated records a saga rolled back by the compensator.
func (m *Metrics) IncrementCompensated() {
	m.SignupsCompensated.Inc()
}

// IncrementValidationRejected records a pre-flight rejection with its reason.
func (m *Metrics) IncrementValidationRejected(reason string) {
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

// ObserveSaga records the total saga duration.
// Call with time.Now() from the start of the operation.
func (m *Metrics) ObserveSaga(start time.Time) {
	m.SagaDuration.Observe(time.Since(start).Seconds())
}
