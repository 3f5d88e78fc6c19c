// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// session.MetricsRecorder、loader.MetricsRecorder、
// admin.MetricsRecorder、streams.MetricsRecorderを実装する。
type Collector struct {
	sessionPhase   *prometheus.CounterVec
	provisioned    prometheus.Counter
	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	commitTotal    *prometheus.CounterVec
	ingestInserted prometheus.Counter
	ingestUpdated  prometheus.Counter
	ingestFail     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionPhase: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_session_phase_transitions_total",
			Help: "セッション状態遷移のフェーズ別合計数",
		}, []string{"phase"}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_profiles_provisioned_total",
			Help: "初回サインインで自動作成されたプロフィールの合計数",
		}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_collection_fetch_total",
			Help: "コレクション取得のコレクション・結果別合計数",
		}, []string{"collection", "result"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumina_collection_fetch_latency_seconds",
			Help:    "コレクション取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection"}),
		commitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_admin_commit_total",
			Help: "管理操作の保存のコレクション・結果別合計数",
		}, []string{"collection", "result"}),
		ingestInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_stream_ingest_inserted_total",
			Help: "取り込みで挿入された配信の合計数",
		}),
		ingestUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_stream_ingest_updated_total",
			Help: "取り込みで更新された配信の合計数",
		}),
		ingestFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_stream_ingest_fail_total",
			Help: "配信取り込み失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.sessionPhase,
		c.provisioned,
		c.fetchTotal,
		c.fetchLatency,
		c.commitTotal,
		c.ingestInserted,
		c.ingestUpdated,
		c.ingestFail,
	)

	return c
}

// RecordSessionPhase はセッション状態遷移を記録する。
func (c *Collector) RecordSessionPhase(phase string) {
	c.sessionPhase.WithLabelValues(phase).Inc()
}

// RecordProfileProvisioned はプロフィール自動作成を記録する。
func (c *Collector) RecordProfileProvisioned() {
	c.provisioned.Inc()
}

// RecordFetch はコレクション取得の結果とレイテンシを記録する。
func (c *Collector) RecordFetch(collection string, err error, elapsed time.Duration) {
	c.fetchTotal.WithLabelValues(collection, resultLabel(err)).Inc()
	c.fetchLatency.WithLabelValues(collection).Observe(elapsed.Seconds())
}

// RecordCommit は管理操作の保存結果を記録する。
func (c *Collector) RecordCommit(collection string, err error) {
	c.commitTotal.WithLabelValues(collection, resultLabel(err)).Inc()
}

// RecordIngest は配信取り込みの結果を記録する。
func (c *Collector) RecordIngest(inserted, updated int, err error) {
	if err != nil {
		c.ingestFail.Inc()
		return
	}
	c.ingestInserted.Add(float64(inserted))
	c.ingestUpdated.Add(float64(updated))
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
