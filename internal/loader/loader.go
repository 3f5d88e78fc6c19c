// Package loader はリモートコレクションの取得状態機械を提供する。
// 各コレクションは独立したLoaderを持ち、片方の失敗が他方に波及しない。
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/lumina/internal/model"
)

// ErrDisposed は破棄済みLoaderへの操作を表す。
var ErrDisposed = errors.New("loader: disposed")

// ErrInFlight は取得実行中の重複要求を表す。先行の取得が唯一の実行として残る。
var ErrInFlight = errors.New("loader: fetch already in flight")

// FetchFunc はコレクション全体の権威的スナップショットを取得する。
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// MetricsRecorder はコレクション取得メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordFetch(collection string, err error, elapsed time.Duration)
}

// State はLoaderの観測可能な状態を表す。
// 取得失敗後もItemsには直前の成功結果が残り、エラー表示と併せて
// 古いデータを提示するかは利用側が決める。
type State[T any] struct {
	Loading bool
	Err     error
	Items   []T
	Loaded  bool // 一度でも取得に成功したか
}

// Loader は単一コレクションの取得と状態遷移を管理する。
type Loader[T any] struct {
	collection string
	fetch      FetchFunc[T]
	limiter    *rate.Limiter
	metrics    MetricsRecorder

	mu       sync.Mutex
	seq      uint64
	inflight bool
	disposed bool
	state    State[T]
	watchers []func(State[T])
}

// Option はLoaderの生成オプション。
type Option[T any] func(*Loader[T])

// WithRateLimit は取得要求の流量制限を設定する。
func WithRateLimit[T any](limit rate.Limit, burst int) Option[T] {
	return func(l *Loader[T]) { l.limiter = rate.NewLimiter(limit, burst) }
}

// WithMetrics はメトリクス記録を有効にする。
func WithMetrics[T any](m MetricsRecorder) Option[T] {
	return func(l *Loader[T]) { l.metrics = m }
}

// New はLoaderを生成する。collectionはログとエラー文言に使う表示名。
func New[T any](collection string, fetch FetchFunc[T], opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{
		collection: collection,
		fetch:      fetch,
		state:      State[T]{Loading: false},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Snapshot は現在の状態を返す。
func (l *Loader[T]) Snapshot() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnChange は状態遷移の通知先を登録する。
// コールバックは遷移確定後にロック外で呼び出される。
func (l *Loader[T]) OnChange(fn func(State[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// Load はコレクションを取得する。
// 実行中の取得がある場合はErrInFlightを返し、二重取得を起こさない。
// 失敗は状態のErrに反映され、直前の成功結果はItemsに残る。
func (l *Loader[T]) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return ErrDisposed
	}
	if l.inflight {
		l.mu.Unlock()
		return ErrInFlight
	}
	l.inflight = true
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inflight = false
		l.mu.Unlock()
	}()

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	st := l.Snapshot()
	st.Loading = true
	st.Err = nil
	l.commit(seq, st)

	start := time.Now()
	items, err := l.fetch(ctx)
	elapsed := time.Since(start)

	if l.metrics != nil {
		l.metrics.RecordFetch(l.collection, err, elapsed)
	}

	if err != nil {
		slog.Error("collection fetch failed",
			slog.String("collection", l.collection),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
		st = l.Snapshot()
		st.Loading = false
		st.Err = model.NewFetchFailedError(l.collection, err.Error())
		l.commit(seq, st)
		return st.Err
	}

	slog.Debug("collection fetched",
		slog.String("collection", l.collection),
		slog.Int("count", len(items)),
		slog.Duration("elapsed", elapsed),
	)
	l.commit(seq, State[T]{Items: items, Loaded: true})
	return nil
}

// Retry は直前と同一の取得を再実行する。Loadと同じ経路を通り、
// 失敗後の再試行でも取得内容は変わらない。
func (l *Loader[T]) Retry(ctx context.Context) error {
	return l.Load(ctx)
}

// Replace はLoaderの保持データをコレクション全体のスナップショットで
// 置き換える。管理操作の保存成功後のローカル反映に使う。
func (l *Loader[T]) Replace(items []T) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	l.commit(seq, State[T]{Items: items, Loaded: true})
}

// Dispose はLoaderを破棄する。以後の操作と遅延した取得結果は反映されない。
func (l *Loader[T]) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disposed = true
	l.watchers = nil
}

// commit は連番が最新かつ未破棄の場合のみ状態を確定する。
// 破棄後やRetryで追い越された古い取得結果はここで捨てられる。
func (l *Loader[T]) commit(seq uint64, st State[T]) {
	l.mu.Lock()
	if l.disposed || seq != l.seq {
		l.mu.Unlock()
		return
	}
	l.state = st
	watchers := make([]func(State[T]), len(l.watchers))
	copy(watchers, l.watchers)
	l.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
}
