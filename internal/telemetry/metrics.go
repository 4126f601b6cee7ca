// Package telemetry provides logging, metrics, tracing and debug dumps for
// the hitung evaluator.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for evaluator sessions. A nil
// *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec   // backend, status
	errors      *prometheus.CounterVec   // stage
	duration    *prometheus.HistogramVec // backend
	variables   prometheus.Gauge
}

// NewMetrics creates a collector backed by its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitung_evaluations_total",
			Help: "Total evaluated lines.",
		}, []string{"backend", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitung_errors_total",
			Help: "Failed evaluations by pipeline stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hitung_evaluation_duration_seconds",
			Help:    "Time from input line to result.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"backend"}),
		variables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitung_variables",
			Help: "Variables bound in the session environment.",
		}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.errors,
		m.duration,
		m.variables,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordEvaluation records a completed evaluation.
func (m *Metrics) RecordEvaluation(backend, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(backend, status).Inc()
	m.duration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordError counts a failure at the given stage.
func (m *Metrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(stage).Inc()
}

// SetVariables reports the size of the environment.
func (m *Metrics) SetVariables(n int) {
	if m == nil {
		return
	}
	m.variables.Set(float64(n))
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
