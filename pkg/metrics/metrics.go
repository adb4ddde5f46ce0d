// Package metrics exposes Prometheus instrumentation for the memory
// engine, following the teacher's pkg/metrics gauge/counter/histogram
// layout and its Timer helper, renamed from cluster-orchestration
// concerns (nodes, services, raft) to store/index/query concerns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_memory_items_total",
			Help: "Total number of memory items by scope",
		},
		[]string{"scope"},
	)

	UpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_memory_upserts_total",
			Help: "Total number of upsert operations by scope",
		},
		[]string{"scope"},
	)

	DeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_memory_deletes_total",
			Help: "Total number of delete operations by scope",
		},
		[]string{"scope"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_memory_queries_total",
			Help: "Total number of query operations by scope and cache outcome",
		},
		[]string{"scope", "cache"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_memory_query_duration_seconds",
			Help:    "Duration of query operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_memory_index_flush_duration_seconds",
			Help:    "Duration of inverted index flush operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_memory_compaction_duration_seconds",
			Help:    "Duration of journal compaction operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_memory_compactions_total",
			Help: "Total number of compactions by scope",
		},
		[]string{"scope"},
	)

	SensitivityRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_memory_sensitivity_rejections_total",
			Help: "Total number of upserts rejected by the committed-scope sensitivity policy",
		},
		[]string{"scope"},
	)

	QueryCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "llm_memory_query_cache_entries",
			Help: "Current number of entries in the query cache",
		},
	)
)

func init() {
	prometheus.MustRegister(ItemsTotal)
	prometheus.MustRegister(UpsertsTotal)
	prometheus.MustRegister(DeletesTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(IndexFlushDuration)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(CompactionsTotal)
	prometheus.MustRegister(SensitivityRejectionsTotal)
	prometheus.MustRegister(QueryCacheSize)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an operation and records its duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
