// Package streams は配信フィードのバックグラウンド取り込みを提供する。
// ポーラー、フェッチャー、リトライ/バックオフ戦略を含む。
package streams

import (
	"fmt"
	"time"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop はフェッチ停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（15分）。
	initialBackoff = 15 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（6時間）。
	maxBackoff = 6 * time.Hour
	// parseFailureThreshold はパース失敗による取り込み停止の閾値。
	parseFailureThreshold = 10
)

// SourceState は配信フィード1本の取り込み状態を表す。
type SourceState struct {
	ConsecutiveErrors int
	Stopped           bool
	ErrorMessage      string
	NextFetchAt       time.Time
}

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回15分、2倍ずつ増加、最大6時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyStop は配信フィードの取り込みを停止する。
func (s *SourceState) ApplyStop(reason string) {
	s.Stopped = true
	s.ErrorMessage = reason
}

// ApplyBackoff は連続エラー回数をインクリメントし、
// 指数バックオフで次回フェッチ時刻を設定する。
func (s *SourceState) ApplyBackoff(reason string) {
	s.ConsecutiveErrors++
	s.ErrorMessage = reason
	s.NextFetchAt = time.Now().Add(CalculateBackoff(s.ConsecutiveErrors - 1))
}

// ApplySuccess はフェッチ成功時に状態をリセットし、
// 通常間隔で次回フェッチ時刻を設定する。
func (s *SourceState) ApplySuccess(interval time.Duration) {
	s.ConsecutiveErrors = 0
	s.ErrorMessage = ""
	s.NextFetchAt = time.Now().Add(interval)
}

// ApplyParseFailure はパース失敗時に連続エラー回数をインクリメントする。
// 閾値に達した場合は取り込みを停止する。
func (s *SourceState) ApplyParseFailure(reason string) {
	s.ConsecutiveErrors++
	s.ErrorMessage = fmt.Sprintf("パース失敗 (%d回連続): %s", s.ConsecutiveErrors, reason)

	if s.ConsecutiveErrors >= parseFailureThreshold {
		s.Stopped = true
		s.ErrorMessage = fmt.Sprintf("パース失敗が%d回連続したため取り込みを停止しました: %s", s.ConsecutiveErrors, reason)
	}
}
