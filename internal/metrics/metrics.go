// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ポーリングや配信のサービス層から利用する。
type MetricsCollector interface {
	RecordProbe(outcome string, duration time.Duration)
	RecordTransition(productID string)
	RecordNotification(channel string, success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	probeTotal    *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		probeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passalarm_probe_total",
			Help: "在庫確認の結果種別ごとの合計数",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "passalarm_probe_latency_seconds",
			Help:    "在庫確認のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passalarm_availability_transitions_total",
			Help: "AVAILABLEへの遷移エッジのパス別合計数",
		}, []string{"product_id"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passalarm_notifications_total",
			Help: "チャネル別・結果別の通知配信数",
		}, []string{"channel", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passalarm_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.probeTotal,
		c.probeLatency,
		c.transitions,
		c.notifications,
		c.httpStatus,
	)

	return c
}

// RecordProbe は在庫確認の結果とレイテンシを記録する。
func (c *Collector) RecordProbe(outcome string, duration time.Duration) {
	c.probeTotal.WithLabelValues(outcome).Inc()
	c.probeLatency.Observe(duration.Seconds())
}

// RecordTransition はAVAILABLEへの遷移エッジを記録する。
func (c *Collector) RecordTransition(productID string) {
	c.transitions.WithLabelValues(productID).Inc()
}

// RecordNotification はチャネル単位の配信結果を記録する。
func (c *Collector) RecordNotification(channel string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.notifications.WithLabelValues(channel, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
