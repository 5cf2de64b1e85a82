package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics holds the request collectors for one server.
type HTTPMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestsInProgress prometheus.Gauge
	RequestDuration    *prometheus.HistogramVec
}

// NewHTTPMetrics registers the request collectors on reg, labelled with the server name.
func NewHTTPMetrics(reg prometheus.Registerer, server string) *HTTPMetrics {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"server": server}, reg))
	return &HTTPMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		RequestsInProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "HTTP requests currently being served.",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

// Middleware tracks request metrics
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.RequestsInProgress,
		promhttp.InstrumentHandlerDuration(m.RequestDuration,
			promhttp.InstrumentHandlerCounter(m.RequestsTotal, next)))
}

// MetricsHandler exposes the registry in the Prometheus text format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
