// Package metrics defines the Prometheus collectors for index builds and
// lookups. Each process owns a registry that is written out as a textfile
// when it exits.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	BuildsTotal          *prometheus.CounterVec
	BuildStageDuration   *prometheus.HistogramVec
	DocsIndexedTotal     prometheus.Counter
	TermsIndexed         prometheus.Gauge
	StoreBytes           *prometheus.GaugeVec
	CompressionRatio     prometheus.Gauge
	RetrievalsTotal      *prometheus.CounterVec
	RetrievalLatency     *prometheus.HistogramVec
	PostingsReturned     prometheus.Histogram
	BestMatchTotal       *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IntegrityChecksTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Registry: reg,
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by status (ok, error).",
			},
			[]string{"status"},
		),
		BuildStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_build_stage_duration_seconds",
				Help:    "Duration of each index build stage in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_docs_indexed_total",
				Help: "Total documents fed to the postings builder.",
			},
		),
		TermsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Distinct terms in the last built index.",
			},
		),
		StoreBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_store_bytes",
				Help: "On-disk size of each store file group.",
			},
			[]string{"store"},
		),
		CompressionRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_compression_ratio",
				Help: "Uncompressed store bytes divided by compressed blob bytes.",
			},
		),
		RetrievalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_retrievals_total",
				Help: "Postings retrievals by mode and result (ok, not_found, corrupt, error).",
			},
			[]string{"mode", "result"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_retrieval_latency_seconds",
				Help:    "Postings retrieval latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"mode", "cache_status"},
		),
		PostingsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_postings_returned",
				Help:    "Number of postings returned per retrieval.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		BestMatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stats_best_match_total",
				Help: "Best match queries by method (naive, matrix).",
			},
			[]string{"method"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of postings cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of postings cache misses.",
			},
		),
		IntegrityChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_integrity_checks_total",
				Help: "Store integrity checks by check name and status.",
			},
			[]string{"check", "status"},
		),
	}

	reg.MustRegister(
		m.BuildsTotal,
		m.BuildStageDuration,
		m.DocsIndexedTotal,
		m.TermsIndexed,
		m.StoreBytes,
		m.CompressionRatio,
		m.RetrievalsTotal,
		m.RetrievalLatency,
		m.PostingsReturned,
		m.BestMatchTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IntegrityChecksTotal,
	)
	return m
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
