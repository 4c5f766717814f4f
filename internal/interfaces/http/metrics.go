package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/cache"
	"github.com/sawpanic/bazirun/internal/shensha"
)

// MetricsRegistry holds all Prometheus metrics for bazirun
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Chart computation latency by outcome
	ChartDuration *prometheus.HistogramVec

	// HTTP request counts by route and status code
	Requests *prometheus.CounterVec

	// Marker rule outcomes by rule key
	MarkerOutcomes *prometheus.CounterVec

	// Cache lookups by layer; "miss" when no layer answered
	CacheLookups *prometheus.CounterVec

	// Warnings attached to results, by kind
	Warnings *prometheus.CounterVec

	// Requests rejected by the rate limiter
	RateLimited prometheus.Counter
}

// NewMetricsRegistry creates the metrics on a private registry
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		ChartDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bazirun_chart_duration_seconds",
				Help:    "Duration of chart requests in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"outcome"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazirun_http_requests_total",
				Help: "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		MarkerOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazirun_marker_outcomes_total",
				Help: "Marker rule evaluations by rule and outcome",
			},
			[]string{"rule", "outcome"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazirun_cache_lookups_total",
				Help: "Chart cache lookups by answering layer",
			},
			[]string{"layer"},
		),

		Warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazirun_result_warnings_total",
				Help: "Warnings attached to chart results by kind",
			},
			[]string{"kind"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bazirun_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.ChartDuration,
		m.Requests,
		m.MarkerOutcomes,
		m.CacheLookups,
		m.Warnings,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, for tests and extra collectors
func (m *MetricsRegistry) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsHandler serves the registry in the Prometheus text format
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMarker matches shensha.Observer
func (m *MetricsRegistry) ObserveMarker(key string, outcome shensha.OutcomeKind) {
	m.MarkerOutcomes.WithLabelValues(key, outcome.String()).Inc()
}

func (m *MetricsRegistry) ObserveChart(outcome string, d time.Duration) {
	m.ChartDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *MetricsRegistry) ObserveCache(layer cache.Layer) {
	name := string(layer)
	if layer == cache.LayerNone {
		name = "miss"
	}
	m.CacheLookups.WithLabelValues(name).Inc()
}

func (m *MetricsRegistry) ObserveWarnings(ws []application.Warning) {
	for _, w := range ws {
		m.Warnings.WithLabelValues(string(w.Kind)).Inc()
	}
}
