// Package metrics collects the relay's prometheus metrics on a private
// registry and exposes the /metrics handler for the main mux.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all relay-level metrics.
type Metrics struct {
	registry *prometheus.Registry

	IngestTotal       *prometheus.CounterVec
	RequestsTotal     *prometheus.CounterVec
	CommandsByStatus  *prometheus.GaugeVec
	SnapshotKeys      prometheus.Gauge
	StreamSubscribers prometheus.Gauge
	IngestBytes       prometheus.Histogram
}

// New creates and registers all relay metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		IngestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "ingest",
				Name:      "total",
				Help:      "Snapshot ingestion attempts by outcome",
			},
			[]string{"status"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "API requests by endpoint and response status",
			},
			[]string{"endpoint", "status"},
		),

		CommandsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "relay",
				Subsystem: "commands",
				Name:      "count",
				Help:      "Retained commands by lifecycle status",
			},
			[]string{"status"},
		),

		SnapshotKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "relay",
				Subsystem: "state",
				Name:      "snapshot_keys",
				Help:      "Top-level keys in the current snapshot",
			},
		),

		StreamSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "relay",
				Subsystem: "stream",
				Name:      "subscribers",
				Help:      "Connected websocket stream subscribers",
			},
		),

		IngestBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Subsystem: "ingest",
				Name:      "bytes",
				Help:      "Ingested snapshot body size in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IngestTotal,
		m.RequestsTotal,
		m.CommandsByStatus,
		m.SnapshotKeys,
		m.StreamSubscribers,
		m.IngestBytes,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
