// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ポーリングサイクルの結果ラベル
const (
	PollFound    = "found"
	PollNotFound = "not_found"
	PollError    = "error"
)

// 再生状態取得の結果ラベル
const (
	PlaybackPlaying         = "playing"
	PlaybackIdle            = "idle"
	PlaybackUnauthenticated = "unauthenticated"
	PlaybackRefreshFailed   = "refresh_failed"
	PlaybackUpstreamError   = "upstream_error"
)

// 上流サービスのラベル
const (
	UpstreamSpotify = "spotify"
	UpstreamDiscord = "discord"
	UpstreamPublish = "publish"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordPollCycle(outcome string)
	RecordGuildLookupFailure(guildID string)
	RecordPublishFailure()
	RecordPlaybackFetch(outcome string)
	RecordTokenRefresh(success bool)
	RecordHTTPStatus(statusCode int)
	RecordUpstreamLatency(upstream string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pollCycles      *prometheus.CounterVec
	guildLookupFail prometheus.Counter
	publishFail     prometheus.Counter
	playbackFetches *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_presence_poll_cycles_total",
			Help: "プレゼンスポーリングサイクルの結果別の合計数",
		}, []string{"outcome"}),
		guildLookupFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_guild_lookup_fail_total",
			Help: "ギルド単位のメンバー検索失敗の合計数",
		}),
		publishFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_presence_publish_fail_total",
			Help: "プレゼンススナップショット公開失敗の合計数",
		}),
		playbackFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_playback_fetch_total",
			Help: "再生状態取得の結果別の合計数",
		}, []string{"outcome"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_token_refresh_total",
			Help: "トークンリフレッシュの結果別の合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harmony_upstream_latency_seconds",
			Help:    "上流サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
	}

	reg.MustRegister(
		c.pollCycles,
		c.guildLookupFail,
		c.publishFail,
		c.playbackFetches,
		c.tokenRefreshes,
		c.httpStatus,
		c.upstreamLatency,
	)

	return c
}

// RecordPollCycle はポーリングサイクルの結果を記録する。
func (c *Collector) RecordPollCycle(outcome string) {
	c.pollCycles.WithLabelValues(outcome).Inc()
}

// RecordGuildLookupFailure はギルド単位の検索失敗を記録する。
// ギルドIDはカーディナリティを抑えるためラベルにしない。
func (c *Collector) RecordGuildLookupFailure(guildID string) {
	c.guildLookupFail.Inc()
}

// RecordPublishFailure はスナップショット公開失敗を記録する。
func (c *Collector) RecordPublishFailure() {
	c.publishFail.Inc()
}

// RecordPlaybackFetch は再生状態取得の結果を記録する。
func (c *Collector) RecordPlaybackFetch(outcome string) {
	c.playbackFetches.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh はトークンリフレッシュの成否を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.tokenRefreshes.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(upstream string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(upstream).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordPollCycle(string)                      {}
func (Nop) RecordGuildLookupFailure(string)             {}
func (Nop) RecordPublishFailure()                       {}
func (Nop) RecordPlaybackFetch(string)                  {}
func (Nop) RecordTokenRefresh(bool)                     {}
func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
