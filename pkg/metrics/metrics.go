// Package metrics exposes the Prometheus counters of the control plane.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one server instance.
type Metrics struct {
	registry *prometheus.Registry

	authzDecisions *prometheus.CounterVec
	applyResults   *prometheus.CounterVec
	applyRejected  *prometheus.CounterVec
	auditDropped   *prometheus.CounterVec
	proxyRequests  *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authzDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ns4kafka_authz_decisions_total", Help: "Authorization decisions by outcome"},
			[]string{"decision"},
		),
		applyResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ns4kafka_apply_results_total", Help: "Apply and delete outcomes per kind"},
			[]string{"kind", "status", "dryrun"},
		),
		applyRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ns4kafka_apply_rejected_total", Help: "Rejected applies per kind and stage"},
			[]string{"kind", "stage"},
		),
		auditDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ns4kafka_audit_events_dropped_total", Help: "Audit events dropped or failed per listener"},
			[]string{"listener"},
		),
		proxyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ns4kafka_proxy_requests_total", Help: "Internal proxy requests per target and status"},
			[]string{"target", "code"},
		),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.authzDecisions, m.applyResults, m.applyRejected, m.auditDropped, m.proxyRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AuthzDecision(decision string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ApplyResult(kind, status string, dryRun bool) {
	if m == nil {
		return
	}
	m.applyResults.WithLabelValues(kind, status, strconv.FormatBool(dryRun)).Inc()
}

func (m *Metrics) ApplyRejected(kind, stage string) {
	if m == nil {
		return
	}
	m.applyRejected.WithLabelValues(kind, stage).Inc()
}

func (m *Metrics) AuditDropped(listener string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(listener).Inc()
}

func (m *Metrics) ProxyRequest(target string, code int) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(target, strconv.Itoa(code)).Inc()
}
