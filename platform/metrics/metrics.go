// Package metrics exposes Prometheus collectors for the gateway.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	upstreamCallsTotal   *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec

	uploadRejections *prometheus.CounterVec
	uploadBytes      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		upstreamCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_calls_total",
				Help: "Upstream calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		upstreamCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_call_duration_seconds",
				Help:    "Upstream call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"operation"},
		),
		uploadRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upload_rejections_total",
				Help: "Submissions rejected before reaching the upstream, by kind",
			},
			[]string{"operation", "kind"},
		),
		uploadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upload_image_bytes",
				Help:    "Size of accepted image uploads",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"operation"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamCallsTotal,
		m.upstreamCallDuration,
		m.uploadRejections,
		m.uploadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// RecordUpstreamCall records one upstream call.
func (m *Metrics) RecordUpstreamCall(operation, outcome string, duration time.Duration) {
	m.upstreamCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.upstreamCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUploadRejected records a submission rejected by validation.
func (m *Metrics) RecordUploadRejected(operation, kind string) {
	m.uploadRejections.WithLabelValues(operation, kind).Inc()
}

// RecordUploadAccepted records the image size of an accepted submission.
func (m *Metrics) RecordUploadAccepted(operation string, imageBytes int) {
	m.uploadBytes.WithLabelValues(operation).Observe(float64(imageBytes))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
