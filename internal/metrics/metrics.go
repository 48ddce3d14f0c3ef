// Package metrics exposes review workflow counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "review"

// Metrics implements review.Recorder and notify.Recorder.
type Metrics struct {
	registry      *prometheus.Registry
	selections    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates the collectors on a private registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Total number of next-item requests by result",
			},
			[]string{"result"}, // ok, empty, reserved, error
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of reviewer decisions by action and result",
			},
			[]string{"action", "result"}, // result: ok, invalid, not_found, conflict, error
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of queue exhaustion notifications by result",
			},
			[]string{"result"}, // sent, throttled, error
		),
	}
	m.registry.MustRegister(
		m.selections,
		m.transitions,
		m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Selection(result string) {
	m.selections.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(action, result string) {
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Notification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
