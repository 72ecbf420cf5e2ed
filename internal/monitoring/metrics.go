package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 投递结果
const (
	DeliveryStored      = "stored"
	DeliveryDuplicate   = "duplicate"
	DeliveryInvalid     = "invalid"
	DeliveryFailed      = "error"
	DeliveryRateLimited = "rate_limited"
)

// 读取结果
const (
	FetchOK      = "ok"
	FetchInvalid = "invalid"
	FetchFailed  = "error"
)

// Metrics 监控指标。每个实例使用独立的 Registry，可以在测试中重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 投递与读取
	DeliveriesTotal *prometheus.CounterVec
	DoodleBytes     prometheus.Histogram
	FetchesTotal    *prometheus.CounterVec
	InboxItems      prometheus.Histogram

	// 好友请求
	FriendRequestsTotal *prometheus.CounterVec

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doodle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doodle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doodle_deliveries_total",
				Help: "Doodle deliveries by outcome",
			},
			[]string{"outcome"},
		),

		DoodleBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "doodle_payload_bytes",
				Help:    "Size of stored doodle data URLs in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doodle_inbox_fetches_total",
				Help: "Inbox fetches by outcome",
			},
			[]string{"outcome"},
		),

		InboxItems: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "doodle_inbox_items",
				Help:    "Number of items returned per inbox fetch",
				Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24},
			},
		),

		FriendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doodle_friend_requests_total",
				Help: "Friend request operations by action",
			},
			[]string{"action"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "doodle_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDelivery 记录一次投递结果，size 仅在成功存储时统计
func (m *Metrics) RecordDelivery(outcome string, size int) {
	m.DeliveriesTotal.WithLabelValues(outcome).Inc()
	if outcome == DeliveryStored {
		m.DoodleBytes.Observe(float64(size))
	}
}

// RecordFetch 记录一次收件箱读取
func (m *Metrics) RecordFetch(outcome string, items int) {
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	if outcome == FetchOK {
		m.InboxItems.Observe(float64(items))
	}
}

// RecordFriendRequest 记录好友请求操作（created, duplicate, accepted, declined）
func (m *Metrics) RecordFriendRequest(action string) {
	m.FriendRequestsTotal.WithLabelValues(action).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Registry 返回底层的 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 /metrics 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
