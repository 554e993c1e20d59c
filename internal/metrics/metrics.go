package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for a harvest run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	RecordsExtracted  prometheus.Counter
	ExtractionsFailed prometheus.Counter
	DecisionsTotal    *prometheus.CounterVec
	BatchesFlushed    prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_requests_total",
			Help: "Fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_fetch_duration_seconds",
			Help:    "Latency of catalog page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_records_extracted_total",
			Help: "Product records extracted from item pages.",
		},
	)
	extractionsFailed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_extractions_failed_total",
			Help: "Item pages that could not be fetched or extracted.",
		},
	)
	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reconciliation_decisions_total",
			Help: "Reconciliation decisions by kind.",
		},
		[]string{"decision"},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_store_batches_total",
			Help: "Bulk insert batches sent to the store.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, extracted, extractionsFailed, decisions, batches, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RecordsExtracted:  extracted,
		ExtractionsFailed: extractionsFailed,
		DecisionsTotal:    decisions,
		BatchesFlushed:    batches,
		ErrorsTotal:       errorsTotal,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncRequest counts a fetch attempt with its outcome.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a fetch latency.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncExtracted counts an extracted record.
func (m *Metrics) IncExtracted() {
	if m == nil {
		return
	}
	m.RecordsExtracted.Inc()
}

// IncExtractionFailed counts an item page that produced no record.
func (m *Metrics) IncExtractionFailed() {
	if m == nil {
		return
	}
	m.ExtractionsFailed.Inc()
}

// IncDecision counts a reconciliation decision.
func (m *Metrics) IncDecision(kind string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(kind).Inc()
}

// IncBatch counts a bulk insert.
func (m *Metrics) IncBatch() {
	if m == nil {
		return
	}
	m.BatchesFlushed.Inc()
}

// IncError counts an error for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
