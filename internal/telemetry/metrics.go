package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	comparisons *prometheus.CounterVec
	rows        prometheus.Gauge
	periods     prometheus.Gauge
	loadSeconds prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesboard",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salesboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesboard",
			Name:      "comparisons_total",
			Help:      "Period comparisons by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salesboard",
			Name:      "dataset_rows",
			Help:      "Raw sales rows currently served.",
		}),
		periods: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salesboard",
			Name:      "dataset_periods",
			Help:      "Distinct periods currently served.",
		}),
		loadSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salesboard",
			Name:      "dataset_load_seconds",
			Help:      "Duration of the last load and aggregation.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.comparisons, m.rows, m.periods, m.loadSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ObserveLoad records a published dataset.
func (m *Metrics) ObserveLoad(rows, periods int, elapsed time.Duration) {
	m.rows.Set(float64(rows))
	m.periods.Set(float64(periods))
	m.loadSeconds.Set(elapsed.Seconds())
}

// ObserveComparison counts a comparison by outcome ("ok", "not_ready", "incomplete", "unknown_period", "error").
func (m *Metrics) ObserveComparison(outcome string) {
	m.comparisons.WithLabelValues(outcome).Inc()
}
