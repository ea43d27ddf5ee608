// Package metrics provides Prometheus metrics for the indexing pipeline
// and search engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

const namespace = "vaultindex"

// Metrics holds all Prometheus metrics. It implements queue.Observer and
// the index and search recorders.
type Metrics struct {
	// Queue metrics
	QueueEnqueuedTotal   *prometheus.CounterVec
	QueueDispatchedTotal prometheus.Counter
	QueueCompletedTotal  prometheus.Counter
	QueueRetriedTotal    prometheus.Counter
	QueueFailedTotal     *prometheus.CounterVec
	QueueItemDuration    prometheus.Histogram
	QueueRetryDelay      prometheus.Histogram
	QueuePending         prometheus.Gauge
	QueueProcessing      prometheus.Gauge

	// Embedding metrics
	EmbeddingDuration    prometheus.Histogram
	EmbeddingErrorsTotal prometheus.Counter

	// Index metrics
	IndexDocuments prometheus.Gauge

	// Search metrics
	SearchQueriesTotal *prometheus.CounterVec
	SearchResultsTotal *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
}

var _ queue.Observer = (*Metrics)(nil)

// New creates all metrics and registers them on reg. A nil reg creates a
// private registry, so several instances can coexist in one process.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	m := &Metrics{}

	m.QueueEnqueuedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_enqueued_total",
			Help:      "Total number of documents enqueued, by priority",
		},
		[]string{"priority"},
	)
	m.QueueDispatchedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_dispatched_total",
		Help:      "Total number of processing attempts started",
	})
	m.QueueCompletedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_completed_total",
		Help:      "Total number of documents indexed successfully",
	})
	m.QueueRetriedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_retried_total",
		Help:      "Total number of transient failures scheduled for retry",
	})
	m.QueueFailedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_failed_total",
			Help:      "Total number of documents moved to the failure ledger, by class",
		},
		[]string{"class"},
	)
	m.QueueItemDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "queue_item_duration_seconds",
		Help:      "Duration of successful processing attempts in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	m.QueueRetryDelay = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "queue_retry_delay_seconds",
		Help:      "Backoff delay before retries in seconds",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 60},
	})
	m.QueuePending = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_pending",
		Help:      "Documents waiting to be processed, including those in backoff",
	})
	m.QueueProcessing = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_processing",
		Help:      "Documents being processed",
	})

	m.EmbeddingDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "embedding_duration_seconds",
		Help:      "Duration of embedding provider calls in seconds",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
	m.EmbeddingErrorsTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_errors_total",
		Help:      "Total number of failed embedding calls",
	})

	m.IndexDocuments = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_documents",
		Help:      "Documents currently in the index",
	})

	m.SearchQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of searches, by mode",
		},
		[]string{"mode"},
	)
	m.SearchResultsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Total number of results returned, by mode",
		},
		[]string{"mode"},
	)
	m.SearchDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"mode"},
	)

	return m
}

// ItemEnqueued implements queue.Observer.
func (m *Metrics) ItemEnqueued(p queue.Priority) {
	m.QueueEnqueuedTotal.WithLabelValues(p.String()).Inc()
}

// ItemDispatched implements queue.Observer.
func (m *Metrics) ItemDispatched() {
	m.QueueDispatchedTotal.Inc()
}

// ItemCompleted implements queue.Observer.
func (m *Metrics) ItemCompleted(d time.Duration) {
	m.QueueCompletedTotal.Inc()
	m.QueueItemDuration.Observe(d.Seconds())
}

// ItemRetried implements queue.Observer.
func (m *Metrics) ItemRetried(delay time.Duration) {
	m.QueueRetriedTotal.Inc()
	m.QueueRetryDelay.Observe(delay.Seconds())
}

// ItemFailed implements queue.Observer.
func (m *Metrics) ItemFailed(terminal bool) {
	class := "exhausted"
	if terminal {
		class = "terminal"
	}
	m.QueueFailedTotal.WithLabelValues(class).Inc()
}

// DepthChanged implements queue.Observer.
func (m *Metrics) DepthChanged(pending, processing int) {
	m.QueuePending.Set(float64(pending))
	m.QueueProcessing.Set(float64(processing))
}

// EmbeddingObserved records one provider call.
func (m *Metrics) EmbeddingObserved(d time.Duration, err error) {
	m.EmbeddingDuration.Observe(d.Seconds())
	if err != nil {
		m.EmbeddingErrorsTotal.Inc()
	}
}

// IndexSizeChanged records the current index size.
func (m *Metrics) IndexSizeChanged(docs int) {
	m.IndexDocuments.Set(float64(docs))
}

// SearchCompleted records one search.
func (m *Metrics) SearchCompleted(mode string, results int, latency time.Duration) {
	m.SearchQueriesTotal.WithLabelValues(mode).Inc()
	m.SearchResultsTotal.WithLabelValues(mode).Add(float64(results))
	m.SearchDuration.WithLabelValues(mode).Observe(latency.Seconds())
}
