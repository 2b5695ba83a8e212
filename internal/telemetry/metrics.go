// Package telemetry exports refresh observations as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/pkg/models"
)

const namespace = "pkgview"

// Metrics is an engine.Observer backed by a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	triggers   *prometheus.CounterVec
	loads      *prometheus.HistogramVec
	loadErrors *prometheus.CounterVec
	sinceLast  prometheus.Histogram
}

// NewMetrics registers the refresh metrics on a fresh registry. counts, if
// set, is sampled on every scrape.
func NewMetrics(counts func() models.Counts) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_triggers_total",
			Help:      "Refresh triggers handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of loads that ran to completion or were superseded.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		loadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Loads that completed in an error state.",
		}, []string{"kind"}),
		sinceLast: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trigger_interval_seconds",
			Help:      "Time since the previous completed refresh when a trigger arrives.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	m.registry.MustRegister(m.triggers, m.loads, m.loadErrors, m.sinceLast)

	if counts != nil {
		desc := prometheus.NewDesc(namespace+"_counter_value", "Current derived counter values.", []string{"counter"}, nil)
		m.registry.MustRegister(prometheus.CollectorFunc(func(ch chan<- prometheus.Metric) {
			c := counts()
			for name, v := range map[string]int{
				"updates":     c.Updates,
				"vulnerable":  c.Vulnerable,
				"deprecated":  c.Deprecated,
				"consolidate": c.Consolidate,
			} {
				ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), name)
			}
		}))
	}
	return m
}

// ObserveRefresh implements engine.Observer.
func (m *Metrics) ObserveRefresh(o engine.Observation) {
	kind := o.Trigger.Kind.String()
	m.triggers.WithLabelValues(kind, o.Outcome.String()).Inc()
	m.sinceLast.Observe(o.Trigger.Elapsed.Seconds())
	if o.Duration > 0 {
		m.loads.WithLabelValues(kind).Observe(o.Duration.Seconds())
	}
	if o.Err != nil {
		m.loadErrors.WithLabelValues(kind).Inc()
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
