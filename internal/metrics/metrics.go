// Package metrics provides Prometheus metrics for the DoLoop service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	LoopsCreated     prometheus.Counter
	ReloopsTotal     *prometheus.CounterVec
	GenerationsTotal *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		LoopsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doloop_loops_created_total",
				Help: "Total number of loops created.",
			},
		),
		ReloopsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doloop_reloops_total",
				Help: "Total reloop requests by reset rule and outcome.",
			},
			[]string{"rule", "outcome"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doloop_ai_generations_total",
				Help: "Total AI loop generation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doloop_request_duration_seconds",
				Help:    "HTTP request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doloop_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.LoopsCreated)
	reg.MustRegister(m.ReloopsTotal)
	reg.MustRegister(m.GenerationsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReloop increments the reloop counter.
func (m *Metrics) RecordReloop(rule, outcome string) {
	m.ReloopsTotal.WithLabelValues(rule, outcome).Inc()
}

// RecordGeneration increments the AI generation counter.
func (m *Metrics) RecordGeneration(outcome string) {
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDuration observes a request duration for the given route pattern.
func (m *Metrics) RecordDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
