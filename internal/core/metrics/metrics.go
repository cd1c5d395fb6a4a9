// Package metrics defines the Prometheus instruments of the form service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors and the registry they live in.
// Each Metrics owns its registry so tests and embedded servers never collide
// on the process-global default registry.
type Metrics struct {
	registry *prometheus.Registry

	resolves         *prometheus.CounterVec
	resolveDuration  *prometheus.HistogramVec
	unknownTargets   prometheus.Counter
	specsStored      prometheus.Counter
	specsRejected    prometheus.Counter
	compileCacheHits *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formkeeper_resolve_total",
				Help: "Total number of form resolutions by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formkeeper_resolve_duration_seconds",
				Help:    "Duration of form resolutions, compile included on cache miss",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"transport"},
		),
		unknownTargets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formkeeper_unknown_change_targets_total",
			Help: "Change names that matched no section or input, counted per compiled revision",
		}),
		specsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formkeeper_specs_stored_total",
			Help: "Specification revisions accepted and stored",
		}),
		specsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formkeeper_specs_rejected_total",
			Help: "Specification documents rejected as malformed",
		}),
		compileCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formkeeper_compile_cache_lookups_total",
				Help: "Compiled form cache lookups by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.resolves,
		m.resolveDuration,
		m.unknownTargets,
		m.specsStored,
		m.specsRejected,
		m.compileCacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveResolve records one resolution.
func (m *Metrics) ObserveResolve(transport string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolves.WithLabelValues(transport, outcome).Inc()
	m.resolveDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

// UnknownTargets records change names that matched nothing.
func (m *Metrics) UnknownTargets(n int) {
	if n > 0 {
		m.unknownTargets.Add(float64(n))
	}
}

// SpecStored records an accepted revision.
func (m *Metrics) SpecStored() {
	m.specsStored.Inc()
}

// SpecRejected records a malformed document.
func (m *Metrics) SpecRejected() {
	m.specsRejected.Inc()
}

// CacheLookup records a compiled form cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.compileCacheHits.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
