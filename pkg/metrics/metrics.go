// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryConfidence      prometheus.Histogram
	RetrievedChunks      prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocumentsIngested    prometheus.Counter
	ChunksIngested       prometheus.Counter
	GeneratorBreakerOpen prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qa_queries_total",
				Help: "Total QA queries by outcome (answered, no_result, retrieval_error, generation_error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qa_query_latency_seconds",
				Help:    "End-to-end query latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"cache_status"},
		),
		QueryConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qa_query_confidence",
				Help:    "Answer confidence distribution.",
				Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		RetrievedChunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qa_retrieved_chunks",
				Help:    "Number of chunks surviving the distance filter per query.",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of retrieval cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of retrieval cache misses.",
			},
		),
		DocumentsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_ingested_total",
				Help: "Total documents ingested.",
			},
		),
		ChunksIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_ingested_total",
				Help: "Total chunks embedded and stored.",
			},
		),
		GeneratorBreakerOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "generator_circuit_open",
				Help: "Answer generator circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryConfidence,
		m.RetrievedChunks,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocumentsIngested,
		m.ChunksIngested,
		m.GeneratorBreakerOpen,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
