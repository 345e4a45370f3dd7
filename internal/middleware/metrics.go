package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores application metrics
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestsInProgress prometheus.Gauge
	requestDuration    *prometheus.HistogramVec
	analysesTotal      *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
}

// NewMetrics registers the HTTP and analysis collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aml_analyser",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})
	m.requestsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aml_analyser",
		Name:      "http_requests_in_progress",
		Help:      "HTTP requests currently being served",
	})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aml_analyser",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aml_analyser",
		Name:      "analyses_total",
		Help:      "Alert analyses by outcome",
	}, []string{"outcome"})
	// model calls are slow; buckets up to two minutes
	m.analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aml_analyser",
		Name:      "analysis_duration_seconds",
		Help:      "Time spent on one alert analysis",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	m.registry.MustRegister(
		m.requestsTotal, m.requestsInProgress, m.requestDuration,
		m.analysesTotal, m.analysisDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAnalysis records one finished analysis.
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInProgress.Inc()
		defer m.requestsInProgress.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// routePattern keeps label cardinality bounded: tenant and IDs stay templated.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
