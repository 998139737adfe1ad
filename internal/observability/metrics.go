package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the HTTP layer and the generation engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	requestCount   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errorCount     *prometheus.CounterVec
	ticketOutcomes *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	tokenGrants    *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketgen_http_requests_total",
			Help: "HTTP requests served by the operator API.",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketgen_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketgen_http_errors_total",
			Help: "HTTP errors by domain error code.",
		}, []string{"path", "method", "code"}),
		ticketOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketgen_ticket_outcomes_total",
			Help: "Per-item generation outcomes.",
		}, []string{"family", "mode", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketgen_run_duration_seconds",
			Help:    "Wall time of generation runs.",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"family", "mode", "state"}),
		tokenGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketgen_token_grants_total",
			Help: "Client-credentials grant requests against the identity provider.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestLatency,
		m.errorCount,
		m.ticketOutcomes,
		m.runDuration,
		m.tokenGrants,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordTicketOutcome counts one item result.
func (m *Metrics) RecordTicketOutcome(family, mode, status string) {
	if m == nil {
		return
	}
	m.ticketOutcomes.WithLabelValues(family, mode, status).Inc()
}

// RecordRun observes a finished run.
func (m *Metrics) RecordRun(family, mode, state string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(family, mode, state).Observe(duration.Seconds())
}

// RecordTokenGrant counts a grant attempt; result is "ok" or "error".
func (m *Metrics) RecordTokenGrant(result string) {
	if m == nil {
		return
	}
	m.tokenGrants.WithLabelValues(result).Inc()
}
