// Package metrics defines the Prometheus collectors for ingestion and querying.
// A CLI run is short-lived, so the registry is written out as a node_exporter
// textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the tool.
type Metrics struct {
	registry *prometheus.Registry

	ChunksTotal     *prometheus.CounterVec
	FilesTotal      *prometheus.CounterVec
	IngestRuns      *prometheus.CounterVec
	QueriesTotal    *prometheus.CounterVec
	QueryLatency    prometheus.Histogram
	IndexedChunks   prometheus.Gauge
	LastRunUnixTime prometheus.Gauge
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatdocs_ingest_chunks_total",
				Help: "Chunks seen during ingestion by outcome (candidate, skipped, inserted).",
			},
			[]string{"outcome"},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatdocs_ingest_files_total",
				Help: "Files seen by the loader by outcome (loaded, skipped, failed).",
			},
			[]string{"outcome"},
		),
		IngestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatdocs_ingest_runs_total",
				Help: "Ingestion runs by status (ok, partial, error).",
			},
			[]string{"status"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatdocs_queries_total",
				Help: "Queries by result (answered, contextless, error).",
			},
			[]string{"result"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatdocs_query_duration_seconds",
				Help:    "End-to-end query latency in seconds.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		IndexedChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatdocs_indexed_chunks",
				Help: "Number of chunks in the vector store after the last run.",
			},
		),
		LastRunUnixTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatdocs_last_run_timestamp_seconds",
				Help: "Unix time the last command finished.",
			},
		),
	}
	m.registry.MustRegister(
		m.ChunksTotal,
		m.FilesTotal,
		m.IngestRuns,
		m.QueriesTotal,
		m.QueryLatency,
		m.IndexedChunks,
		m.LastRunUnixTime,
	)
	return m
}

func (m *Metrics) ObserveFiles(loaded, skipped, failed int) {
	m.FilesTotal.WithLabelValues("loaded").Add(float64(loaded))
	m.FilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.FilesTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveIngest records chunk counts and the run status.
func (m *Metrics) ObserveIngest(candidates, skipped, inserted int, status string) {
	m.ChunksTotal.WithLabelValues("candidate").Add(float64(candidates))
	m.ChunksTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.ChunksTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.IngestRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveQuery(result string, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(result).Inc()
	m.QueryLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) SetIndexed(n int) {
	m.IndexedChunks.Set(float64(n))
}

// WriteTextfile writes the registry to path. An empty path does nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	m.LastRunUnixTime.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}
