package metrics

import (
	"net/http"

	"github.com/berfenger/switch2mqtt/internal/core/switchtile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "switch2mqtt"

// Metrics groups the bridge counters. All methods accept a nil receiver.
type Metrics struct {
	registry     *prometheus.Registry
	Evaluations  *prometheus.CounterVec
	Actions      *prometheus.CounterVec
	ValueUpdates *prometheus.CounterVec
	Series       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Series state evaluations by resulting state",
			},
			[]string{"state"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Switch actions emitted by status",
			},
			[]string{"status"},
		),
		ValueUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "value_updates_total",
				Help:      "Series value updates by source",
			},
			[]string{"source"},
		),
		Series: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "series",
				Help:      "Number of normalized series",
			},
		),
	}
	m.registry.MustRegister(m.Evaluations, m.Actions, m.ValueUpdates, m.Series)
	return m
}

func (m *Metrics) ObserveSeries(set *switchtile.SeriesSet) {
	if m == nil {
		return
	}
	m.Series.Set(float64(set.Len()))
	for _, ns := range set.Entries() {
		m.Evaluations.WithLabelValues(ns.Selected.String()).Inc()
	}
}

func (m *Metrics) ObserveAction(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Actions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveValueUpdate(source string) {
	if m == nil {
		return
	}
	m.ValueUpdates.WithLabelValues(source).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
