package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "forum"

var (
	// TabCacheRequests tab 缓存命中/未命中
	TabCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tab_cache_requests_total",
			Help:      "Thread tab cache lookups by tab and result (hit/miss/error)",
		},
		[]string{"tab", "result"},
	)

	// EnrichmentQueries 批量查询次数
	EnrichmentQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_queries_total",
			Help:      "Batched enrichment lookups by kind (users/nodes/parents/excerpts)",
		},
		[]string{"kind"},
	)

	// ZoneFallbacks 批量 zone 解析失败后的单点回退
	ZoneFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_fallback_total",
			Help:      "Rows whose zone was resolved by a direct ancestor walk after the batch missed",
		},
	)

	CounterUpdateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_update_failures_total",
			Help:      "Best-effort thread counter updates that failed",
		},
		[]string{"counter"},
	)

	ThreadsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_created_total",
			Help:      "Threads created successfully",
		},
	)

	HotScoreRecalculated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hot_score_recalculated_total",
			Help:      "Thread rows touched by the hot score recalculation job",
		},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request duration seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// MustRegister 注册到指定 Registerer（通常为 prometheus.DefaultRegisterer）
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		TabCacheRequests,
		EnrichmentQueries,
		ZoneFallbacks,
		CounterUpdateFailures,
		ThreadsCreated,
		HotScoreRecalculated,
		ReqDuration,
	)
}
