package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AccessDeniedTotal   *prometheus.CounterVec

	// Business metrics
	FormSubmissionsTotal  *prometheus.CounterVec
	TemplatesCreatedTotal prometheus.Counter
	UsersTotal            prometheus.Gauge
	TemplatesTotal        prometheus.Gauge
	FormsTotal            prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forms_access_denied_total",
				Help: "Requests rejected with 403, by route",
			},
			[]string{"path"},
		),

		FormSubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forms_submissions_total",
				Help: "Form submissions by outcome",
			},
			[]string{"status"},
		),
		TemplatesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forms_templates_created_total",
				Help: "Templates created",
			},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forms_users_total",
				Help: "Registered users",
			},
		),
		TemplatesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forms_templates_total",
				Help: "Stored templates",
			},
		),
		FormsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forms_forms_total",
				Help: "Submitted forms",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDeniedTotal,
		m.FormSubmissionsTotal,
		m.TemplatesCreatedTotal,
		m.UsersTotal,
		m.TemplatesTotal,
		m.FormsTotal,
	)

	return m
}

// NewDefaultRegistry returns a registry with the Go and process collectors
func NewDefaultRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		if status == http.StatusForbidden {
			m.AccessDeniedTotal.WithLabelValues(path).Inc()
		}
	}
}

// RecordSubmission counts a form submission outcome. Safe on a nil receiver.
func (m *Metrics) RecordSubmission(accepted bool) {
	if m == nil {
		return
	}
	status := "rejected"
	if accepted {
		status = "accepted"
	}
	m.FormSubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordTemplateCreated is safe on a nil receiver
func (m *Metrics) RecordTemplateCreated() {
	if m == nil {
		return
	}
	m.TemplatesCreatedTotal.Inc()
}
