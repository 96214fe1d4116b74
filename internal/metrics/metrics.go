// Package metrics exposes Prometheus counters for the ingestion and
// scoring pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the pipeline metrics behind a private registry.
type Collector struct {
	registry *prometheus.Registry

	transactionsIngested prometheus.Counter
	transactionsFlagged  prometheus.Counter
	ingestFailures       prometheus.Counter
	scoringDuration      prometheus.Histogram
	flagsRaised          *prometheus.CounterVec
	uploadsProcessed     prometheus.Counter
	uploadRows           prometheus.Histogram
	rateLimited          prometheus.Counter
}

// NewCollector creates a collector with a dedicated registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		transactionsIngested: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_transactions_ingested_total",
			Help: "Total number of transactions scored and stored",
		}),
		transactionsFlagged: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_transactions_flagged_total",
			Help: "Total number of transactions with at least one fraud flag",
		}),
		ingestFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_ingest_failures_total",
			Help: "Total number of transactions rejected or failed during ingestion",
		}),
		scoringDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_scoring_duration_seconds",
			Help:    "Time taken to score and store one transaction",
			Buckets: prometheus.DefBuckets,
		}),
		flagsRaised: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_fraud_flags_total",
			Help: "Fraud flags raised, by flag name",
		}, []string{"flag"}),
		uploadsProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_uploads_processed_total",
			Help: "Total number of batch file uploads processed",
		}),
		uploadRows: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_upload_rows",
			Help:    "Rows stored per batch upload",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		}),
		rateLimited: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kestrel_rate_limited_total",
			Help: "Requests rejected by the ingestion rate limiter",
		}),
	}
}

// RecordIngest records one scored transaction and its raised flags.
func (c *Collector) RecordIngest(duration time.Duration, flags []string) {
	c.transactionsIngested.Inc()
	c.scoringDuration.Observe(duration.Seconds())
	if len(flags) > 0 {
		c.transactionsFlagged.Inc()
		for _, f := range flags {
			c.flagsRaised.WithLabelValues(f).Inc()
		}
	}
}

// RecordIngestFailure records a rejected or failed submission.
func (c *Collector) RecordIngestFailure() {
	c.ingestFailures.Inc()
}

// RecordUpload records a completed batch upload.
func (c *Collector) RecordUpload(rowsStored int) {
	c.uploadsProcessed.Inc()
	c.uploadRows.Observe(float64(rowsStored))
}

// RecordRateLimited records one request stopped by the rate limiter.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
