package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标管理器；nil 接收者上的方法均为空操作，组件可以不注入
type Metrics struct {
	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHitsTotal        *prometheus.CounterVec
	cacheMissesTotal      *prometheus.CounterVec
	cacheStaleTotal       *prometheus.CounterVec
	cacheRefreshFailTotal *prometheus.CounterVec

	// 业务指标
	businessCounter   *prometheus.CounterVec
	businessHistogram *prometheus.HistogramVec
	activeSessions    prometheus.Gauge
	reminderQueue     *prometheus.CounterVec

	// 链路与数据库
	spanDuration    *prometheus.HistogramVec
	dbQueryDuration *prometheus.HistogramVec
	dbSlowQueries   *prometheus.CounterVec
}

// NewMetrics 创建指标管理器，reg 为空时注册到默认 Registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of fresh cache hits",
			},
			[]string{"cache_type", "operation"},
		),
		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "operation"},
		),
		cacheStaleTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_stale_served_total",
				Help: "Total number of stale entries served while refreshing",
			},
			[]string{"cache_type", "operation"},
		),
		cacheRefreshFailTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_refresh_failures_total",
				Help: "Total number of failed background refreshes",
			},
			[]string{"cache_type", "operation"},
		),

		businessCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "business_operations_total",
				Help: "Total number of business operations",
			},
			[]string{"operation", "status"},
		),
		businessHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "business_duration_seconds",
				Help:    "Business operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "interview_sessions_active",
			Help: "Number of interview sessions currently running",
		}),
		reminderQueue: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_queue_events_total",
				Help: "Reminder queue outcomes",
			},
			[]string{"outcome"},
		),
		spanDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trace_span_duration_seconds",
				Help:    "Duration of traced spans",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"span", "status"},
		),
		dbQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"table", "operation"},
		),
		dbSlowQueries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_slow_queries_total",
				Help: "Queries slower than the configured threshold",
			},
			[]string{"table", "operation"},
		),
	}
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cacheType, operation).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(cacheType, operation).Inc()
}

func (m *Metrics) RecordCacheStale(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheStaleTotal.WithLabelValues(cacheType, operation).Inc()
}

func (m *Metrics) RecordCacheRefreshFailure(cacheType, operation string) {
	if m == nil {
		return
	}
	m.cacheRefreshFailTotal.WithLabelValues(cacheType, operation).Inc()
}

// RecordBusinessOperation 记录业务操作
func (m *Metrics) RecordBusinessOperation(operation, status string) {
	if m == nil {
		return
	}
	m.businessCounter.WithLabelValues(operation, status).Inc()
}

// RecordBusinessDuration 记录业务操作耗时
func (m *Metrics) RecordBusinessDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.businessHistogram.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) RecordReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminderQueue.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSpan(name, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.spanDuration.WithLabelValues(name, status).Observe(d.Seconds())
}

// RecordDBQuery 记录一次查询，slow 为真时慢查询计数加一
func (m *Metrics) RecordDBQuery(table, operation string, d time.Duration, slow bool) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(table, operation).Observe(d.Seconds())
	if slow {
		m.dbSlowQueries.WithLabelValues(table, operation).Inc()
	}
}
