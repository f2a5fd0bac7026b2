// Package metrics exposes workflow and campaign counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tbxark/tripvoice/workflow"
)

type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	degraded    *prometheus.CounterVec
	calls       *prometheus.CounterVec
}

// New registers the tripvoice collectors plus the Go and process collectors
// on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_transitions_total",
				Help: "Stage handler invocations by source stage, target stage and outcome",
			},
			[]string{"from", "to", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripvoice_transition_duration_seconds",
				Help:    "Duration of stage handler invocations",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"stage"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_degraded_steps_total",
				Help: "Processing steps that fell back to default content",
			},
			[]string{"step"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_campaign_calls_total",
				Help: "Outbound campaign calls by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.transitions,
		m.duration,
		m.degraded,
		m.calls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTransition(_ context.Context, event workflow.TransitionEvent) {
	m.transitions.WithLabelValues(string(event.From), string(event.To), string(event.Outcome)).Inc()
	m.duration.WithLabelValues(string(event.From)).Observe(event.Duration.Seconds())
	for _, step := range event.Degraded {
		m.degraded.WithLabelValues(step).Inc()
	}
}

// ObserveCall matches campaign.ResultHook.
func (m *Metrics) ObserveCall(_ string, err error) {
	result := "completed"
	if err != nil {
		result = "failed"
	}
	m.calls.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ workflow.Observer = (*Metrics)(nil)
