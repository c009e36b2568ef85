// Package metrics exposes RiskMesh's Prometheus instrumentation: request
// counters and latency histograms for the ingest path, and gauges for
// graph size that hold whatever SetGraphSize last recorded. The /metrics
// handler serves the registry as it stands; it does not sample the graph.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// Metrics holds every Prometheus collector RiskMesh registers. One
// instance is constructed at startup and threaded through the engine and
// HTTP handlers, following the ambient no-package-level-state convention.
type Metrics struct {
	requestsTotal        *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	requestLatencyMS     prometheus.Histogram
	propagationLatencyMS prometheus.Histogram
	graphNodes           *prometheus.GaugeVec
	graphEdges           prometheus.Gauge
	depthTruncatedTotal  prometheus.Counter
}

// New creates and registers RiskMesh's metrics against a dedicated
// registry, so tests can construct independent instances without
// colliding on the global default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmesh",
			Name:      "requests_total",
			Help:      "Total scoring requests by outcome.",
		}, []string{"outcome"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmesh",
			Name:      "errors_total",
			Help:      "Total scoring requests that failed, by reason.",
		}, []string{"reason"}),
		requestLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskmesh",
			Name:      "request_latency_ms",
			Help:      "End-to-end scoring latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 150, 200, 300, 500, 1000},
		}),
		propagationLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskmesh",
			Name:      "propagation_latency_ms",
			Help:      "Time spent in the propagation BFS in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		graphNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "riskmesh",
			Name:      "graph_nodes",
			Help:      "Current node count by type.",
		}, []string{"type"}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskmesh",
			Name:      "graph_edges",
			Help:      "Current directed edge count.",
		}),
		depthTruncatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskmesh",
			Name:      "depth_truncated_total",
			Help:      "Total requests whose propagation was truncated by the event deadline.",
		}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.requestLatencyMS,
		m.propagationLatencyMS,
		m.graphNodes,
		m.graphEdges,
		m.depthTruncatedTotal,
	)

	return m
}

// RecordRequest records one completed scoring request.
func (m *Metrics) RecordRequest(elapsed time.Duration, flagged bool) {
	outcome := "clear"
	if flagged {
		outcome = "flagged"
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestLatencyMS.Observe(float64(elapsed.Microseconds()) / 1000.0)
}

// RecordError records a rejected request by reason ("validation", "rate_limited", "internal").
func (m *Metrics) RecordError(reason string) {
	m.errorsTotal.WithLabelValues(reason).Inc()
}

// RecordPropagation records one propagation run's wall-clock cost and
// whether it was truncated by the event deadline.
func (m *Metrics) RecordPropagation(elapsed time.Duration, truncated bool) {
	m.propagationLatencyMS.Observe(float64(elapsed.Microseconds()) / 1000.0)
	if truncated {
		m.depthTruncatedTotal.Inc()
	}
}

// SetGraphSize refreshes the graph size gauges from a snapshot.
func (m *Metrics) SetGraphSize(snap domain.GraphSnapshot) {
	for t, count := range snap.NodeCountByType {
		m.graphNodes.WithLabelValues(string(t)).Set(float64(count))
	}
	m.graphEdges.Set(float64(snap.EdgeCount))
}

// Handler returns the Prometheus text-exposition HTTP handler for /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
