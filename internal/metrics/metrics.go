// Package metrics exports pipeline metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docrag"

// Recorder collects query and ingestion metrics on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	queries         *prometheus.CounterVec
	queryLatency    *prometheus.HistogramVec
	quality         prometheus.Histogram
	passages        prometheus.Histogram
	ingestedChunks  *prometheus.CounterVec
	skippedChunks   prometheus.Counter
	gatewayFailures *prometheus.CounterVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of answered queries",
		},
		[]string{"category", "kind"},
	)
	r.queryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "End-to-end query latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	r.quality = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "answer_quality_score",
		Help:      "Heuristic quality score of cleaned answers",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})
	r.passages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieved_passages",
		Help:      "Number of passages retrieved per query",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	})
	r.ingestedChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Total number of chunks added to the index",
		},
		[]string{"kind"},
	)
	r.skippedChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_chunks_total",
		Help:      "Total number of invalid chunks skipped during ingestion",
	})
	r.gatewayFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_failures_total",
			Help:      "Total number of failed embedding or completion calls",
		},
		[]string{"gateway"},
	)

	r.registry.MustRegister(
		r.queries,
		r.queryLatency,
		r.quality,
		r.passages,
		r.ingestedChunks,
		r.skippedChunks,
		r.gatewayFailures,
	)
	return r
}

// ObserveQuery records one answered query.
func (r *Recorder) ObserveQuery(category, kind string, passages int, quality float64, latency time.Duration) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(category, kind).Inc()
	r.queryLatency.WithLabelValues(kind).Observe(latency.Seconds())
	r.quality.Observe(quality)
	r.passages.Observe(float64(passages))
}

// AddChunks records chunks added to the index.
func (r *Recorder) AddChunks(kind string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.ingestedChunks.WithLabelValues(kind).Add(float64(n))
}

// SkipChunks records chunks dropped as invalid.
func (r *Recorder) SkipChunks(n int) {
	if r == nil || n == 0 {
		return
	}
	r.skippedChunks.Add(float64(n))
}

// GatewayFailure records a failed call to "embedding" or "completion".
func (r *Recorder) GatewayFailure(gateway string) {
	if r == nil {
		return
	}
	r.gatewayFailures.WithLabelValues(gateway).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
