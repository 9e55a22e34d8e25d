package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Engine operation metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// Portal metrics
	PortalRequests  *prometheus.CounterVec
	PortalDuration  *prometheus.HistogramVec
	PortalRedirects *prometheus.HistogramVec
	AuthOutcomes    *prometheus.CounterVec
	Extractions     *prometheus.CounterVec
	ExtractedTotal  *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	AuthRejections int64
	TotalDuration  float64 // sum of all request durations
	RequestCount   int64   // count for averaging
}

// NewMetrics creates a new metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Engine operation metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_engine_calls_total",
				Help: "Total number of engine operations by outcome",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_engine_duration_seconds",
				Help:    "Engine operation duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"service", "method"},
		),

		// Portal metrics
		PortalRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_portal_requests_total",
				Help: "Total number of requests sent to the Portal",
			},
			[]string{"op", "status"},
		),
		PortalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_portal_request_duration_seconds",
				Help:    "Portal round-trip duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"op"},
		),
		PortalRedirects: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_portal_redirect_hops",
				Help:    "Redirect hops followed per Portal exchange",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"op"},
		),
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_portal_auth_total",
				Help: "Portal login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_listing_extractions_total",
				Help: "Listing extractions by detected markup format",
			},
			[]string{"format"},
		),
		ExtractedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_listing_records_total",
				Help: "Process records extracted by markup format",
			},
			[]string{"format"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gateway_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the private registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records an engine operation
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// ObservePortalRequest records one Portal round trip. A zero status means
// the request never got a response.
func (m *Metrics) ObservePortalRequest(op string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.PortalRequests.WithLabelValues(op, label).Inc()
	m.PortalDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveRedirects records how many hops a Portal exchange followed
func (m *Metrics) ObserveRedirects(op string, hops int) {
	m.PortalRedirects.WithLabelValues(op).Observe(float64(hops))
}

// ObserveAuth records a login outcome
func (m *Metrics) ObserveAuth(outcome string) {
	m.AuthOutcomes.WithLabelValues(outcome).Inc()
	if outcome != "success" {
		m.mu.Lock()
		m.snapshot.AuthRejections++
		m.mu.Unlock()
	}
}

// ObserveExtraction records one listing extraction
func (m *Metrics) ObserveExtraction(format string, records int) {
	m.Extractions.WithLabelValues(format).Inc()
	m.ExtractedTotal.WithLabelValues(format).Add(float64(records))
}
