package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Authority check latency by step
	StepLatency *prometheus.HistogramVec

	// Step outcomes by step, status and failure category
	StepOutcome *prometheus.CounterVec

	// Run outcomes: passed, failed, canceled
	RunOutcome *prometheus.CounterVec

	// Runs currently in flight
	RunsInFlight prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drivematch_verification_step_duration_seconds",
			Help:    "Duration of authority checks by verification step",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
		}, []string{"step"}),

		StepOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drivematch_verification_step_outcomes_total",
			Help: "Verification step outcomes by step, status and failure category",
		}, []string{"step", "status", "category"}),

		RunOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drivematch_verification_runs_total",
			Help: "Verification run outcomes by actor",
		}, []string{"outcome", "actor"}),

		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "drivematch_verification_runs_in_flight",
			Help: "Verification runs currently executing",
		}),
	}
}

func (m *Metrics) ObserveStepLatency(step string, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(step).Observe(d.Seconds())
	}
}

// IncrementStepOutcome records a finished step. category is empty on success.
func (m *Metrics) IncrementStepOutcome(step, status, category string) {
	if m != nil {
		m.StepOutcome.WithLabelValues(step, status, category).Inc()
	}
}

func (m *Metrics) IncrementRunOutcome(outcome, actor string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome, actor).Inc()
	}
}

func (m *Metrics) RunStarted() {
	if m != nil {
		m.RunsInFlight.Inc()
	}
}

func (m *Metrics) RunFinished() {
	if m != nil {
		m.RunsInFlight.Dec()
	}
}
