package streams

import (
	"context"
	"log/slog"
	"time"
)

// SourcePollerService は配信フィード取り込みの実行インターフェース。
type SourcePollerService interface {
	Fetch(ctx context.Context, state *SourceState, interval time.Duration) error
}

// Poller は単一の配信フィードを定期的に取り込む。
// 失敗時はSourceStateのバックオフに従い、次回フェッチ時刻まで
// ティックをスキップする。停止状態になったフィードは再起動まで
// 取り込まれない。
type Poller struct {
	fetcher  SourcePollerService
	logger   *slog.Logger
	interval time.Duration
	state    SourceState
}

// NewPoller はPollerの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値15分を使用する。
func NewPoller(fetcher SourcePollerService, logger *slog.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Poller{
		fetcher:  fetcher,
		logger:   logger,
		interval: interval,
	}
}

// State は現在の取り込み状態を返す。
func (p *Poller) State() SourceState {
	return p.state
}

// Start は1分間隔のティッカーでポーラーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	p.logger.Info("配信取り込みポーラーを開始しました",
		slog.Duration("interval", p.interval),
	)

	// 起動直後に1回実行
	p.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("配信取り込みポーラーを停止しました")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce は取り込みを1回試行する。停止状態またはバックオフ中は
// 何もしない。
func (p *Poller) RunOnce(ctx context.Context) {
	if p.state.Stopped {
		return
	}
	if time.Now().Before(p.state.NextFetchAt) {
		return
	}

	if err := p.fetcher.Fetch(ctx, &p.state, p.interval); err != nil {
		p.logger.Error("配信フィードの取り込みに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", p.state.ConsecutiveErrors),
		)
	}
}
