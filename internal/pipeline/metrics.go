package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives run, stage and fallback observations.
type Metrics interface {
	RunFinished(status Status)
	StepObserved(step StepName, d time.Duration)
	CollaboratorFallback(collaborator, reason string)
}

type nopMetrics struct{}

func (nopMetrics) RunFinished(Status) {}
func (nopMetrics) StepObserved(StepName, time.Duration) {}
func (nopMetrics) CollaboratorFallback(string, string) {}

// PrometheusMetrics records pipeline metrics in a Prometheus registry.
type PrometheusMetrics struct {
	runs      *prometheus.CounterVec
	steps     *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
}

// NewPrometheusMetrics registers the pipeline collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_pipeline_runs_total",
				Help: "Total number of pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		steps: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendwise_pipeline_step_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"step"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_collaborator_fallbacks_total",
				Help: "Total number of fallback values substituted for collaborator answers",
			},
			[]string{"collaborator", "reason"},
		),
	}
}

// RunFinished counts a run by its terminal status.
func (m *PrometheusMetrics) RunFinished(status Status) {
	m.runs.WithLabelValues(string(status)).Inc()
}

// StepObserved records how long a step took.
func (m *PrometheusMetrics) StepObserved(step StepName, d time.Duration) {
	m.steps.WithLabelValues(string(step)).Observe(d.Seconds())
}

// CollaboratorFallback counts a substituted collaborator answer.
func (m *PrometheusMetrics) CollaboratorFallback(collaborator, reason string) {
	m.fallbacks.WithLabelValues(collaborator, reason).Inc()
}
