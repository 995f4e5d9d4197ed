package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "hydrocore"

// clientCounter reports connected WebSocket clients.
type clientCounter interface {
	ClientCount() int
}

// Metrics holds the Prometheus collectors exported at GET /metrics.
//
// Each Metrics owns its registry, so several servers (as in tests) never
// collide on registration.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	measurements prometheus.Counter
}

// NewMetrics creates the collectors and registers them, along with the Go
// runtime and process collectors. db may be nil.
func NewMetrics(clients clientCounter, db *database.DB) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		measurements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "measurements_recorded_total",
			Help:      "Measurements committed through any channel.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.durations,
		m.measurements,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if clients != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(clients.ClientCount()) }))
	}

	if db != nil {
		m.registry.MustRegister(collectors.NewDBStatsCollector(db.DB, "sqlite"))
	}

	return m
}

// Registry returns the registry backing the handler, for components that
// export their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MeasurementRecorded implements hydro.MeasurementSink.
func (m *Metrics) MeasurementRecorded(_ context.Context, _ hydro.Principal, _ hydro.Measurement) error {
	m.measurements.Inc()
	return nil
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
