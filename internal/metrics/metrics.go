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
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenIssued(tokenType string)
	RecordRefreshFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	loginSuccess   prometheus.Counter
	loginFail      prometheus.Counter
	tokensIssued   *prometheus.CounterVec
	refreshFail    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_tokens_issued_total",
			Help: "発行されたトークンの合計数（種別ラベル付き）",
		}, []string{"token_type"}),
		refreshFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_refresh_fail_total",
			Help: "トークンリフレッシュ失敗の合計数（理由ラベル付き）",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.loginSuccess,
		c.loginFail,
		c.tokensIssued,
		c.refreshFail,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordTokenIssued はトークン発行を種別（access/refresh）付きで記録する。
func (c *Collector) RecordTokenIssued(tokenType string) {
	c.tokensIssued.WithLabelValues(tokenType).Inc()
}

// RecordRefreshFailure はリフレッシュ失敗を理由付きで記録する。
func (c *Collector) RecordRefreshFailure(reason string) {
	c.refreshFail.WithLabelValues(reason).Inc()
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
