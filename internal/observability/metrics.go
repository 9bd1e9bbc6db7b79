package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verity"

// Query outcomes recorded on the queries counter.
const (
	OutcomeAnswered = "answered"
	OutcomeRefused  = "refused"
	OutcomeErrored  = "errored"
	OutcomeInvalid  = "invalid"
)

// Metrics records engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	confidence     prometheus.Histogram
	verdicts       *prometheus.CounterVec
	ingestDocs     *prometheus.CounterVec
	ingestChunks   *prometheus.CounterVec
	backendRetries *prometheus.CounterVec
	backendErrors  *prometheus.CounterVec
}

// NewMetrics creates metrics on a fresh registry, including Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by outcome",
			},
			[]string{"outcome"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of answered queries in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "answer_confidence",
				Help:      "Confidence of returned answers",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grounding_verdicts_total",
				Help:      "Total number of grounding verdicts by kind",
			},
			[]string{"verdict"},
		),
		ingestDocs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_documents_total",
				Help:      "Documents processed by ingestion, by status",
			},
			[]string{"collection", "status"},
		),
		ingestChunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_chunks_total",
				Help:      "Chunks written or skipped by ingestion",
			},
			[]string{"collection", "result"},
		),
		backendRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_retries_total",
				Help:      "Retried backend calls by operation",
			},
			[]string{"operation"},
		),
		backendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_failures_total",
				Help:      "Backend calls that exhausted their retry budget",
			},
			[]string{"operation"},
		),
	}
	m.registry.MustRegister(
		m.queries, m.queryDuration, m.confidence, m.verdicts,
		m.ingestDocs, m.ingestChunks, m.backendRetries, m.backendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery records one finished query.
func (m *Metrics) ObserveQuery(outcome string, confidence float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAnswered || outcome == OutcomeRefused {
		m.queryDuration.Observe(elapsed.Seconds())
		m.confidence.Observe(confidence)
	}
}

// ObserveVerdict records one grounding verdict.
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

// ObserveDocument records one ingested, unchanged or skipped document.
func (m *Metrics) ObserveDocument(collection, status string) {
	if m == nil {
		return
	}
	m.ingestDocs.WithLabelValues(collection, status).Inc()
}

// AddChunks records chunks written ("created") or left alone ("skipped").
func (m *Metrics) AddChunks(collection, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestChunks.WithLabelValues(collection, result).Add(float64(n))
}

// IncRetry records a retried backend call.
func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.backendRetries.WithLabelValues(operation).Inc()
}

// IncBackendFailure records a backend call that gave up.
func (m *Metrics) IncBackendFailure(operation string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(operation).Inc()
}
