package streams

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/lumina/internal/model"
	"github.com/hitoshi/lumina/internal/repository"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// MetricsRecorder は取り込みメトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordIngest(inserted, updated int, err error)
}

// Fetcher は配信フィードのHTTPフェッチとパース、取り込みを行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、SourceIDによるUPSERTを実行する。
type Fetcher struct {
	streamRepo  repository.StreamRepository
	ssrfGuard   SSRFValidator
	metrics     MetricsRecorder // nil可
	logger      *slog.Logger
	feedURL     string
	timeout     time.Duration
	maxBodySize int64

	// 条件付きGET用に直近の成功レスポンスのヘッダーを保持する
	etag         string
	lastModified string
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	streamRepo repository.StreamRepository,
	ssrfGuard SSRFValidator,
	metrics MetricsRecorder,
	logger *slog.Logger,
	feedURL string,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		streamRepo:  streamRepo,
		ssrfGuard:   ssrfGuard,
		metrics:     metrics,
		logger:      logger,
		feedURL:     feedURL,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は配信フィードをフェッチし、結果に応じて取り込み状態を更新する。
// SourcePollerServiceインターフェースを実装する。
func (f *Fetcher) Fetch(ctx context.Context, state *SourceState, interval time.Duration) error {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(f.feedURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url", f.feedURL),
			slog.String("error", err.Error()),
		)
		state.ApplyStop(fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	// HTTPリクエスト構築
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "Lumina/1.0 Stream Ingester")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}

	// HTTPリクエスト実行
	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_url", f.feedURL),
			slog.String("error", err.Error()),
		)
		state.ApplyBackoff(fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultNotModified:
		// 304: コンテンツ未変更
		f.logger.Info("配信フィードは未変更です（304）",
			slog.String("feed_url", f.feedURL),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		state.ApplySuccess(interval)
		return nil

	case FetchResultStop:
		reason := fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", resp.StatusCode)
		f.logger.Warn("配信フィードの取り込みを停止します",
			slog.String("feed_url", f.feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		state.ApplyStop(reason)
		return nil

	case FetchResultBackoff:
		reason := fmt.Sprintf("HTTPステータス %d", resp.StatusCode)
		f.logger.Warn("配信フィードの取得をバックオフします",
			slog.String("feed_url", f.feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		state.ApplyBackoff(reason)
		return nil

	case FetchResultUnknown:
		state.ApplyBackoff(fmt.Sprintf("未知のHTTPステータス %d", resp.StatusCode))
		return nil
	}

	// 200: パースと取り込み
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		state.ApplyBackoff(fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		return fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", f.feedURL),
			slog.String("error", err.Error()),
		)
		state.ApplyParseFailure(err.Error())
		return fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	inserted, updated, err := f.upsertItems(ctx, parsed.Items)
	if f.metrics != nil {
		f.metrics.RecordIngest(inserted, updated, err)
	}
	if err != nil {
		state.ApplyBackoff(fmt.Sprintf("取り込み失敗: %s", err.Error()))
		return fmt.Errorf("取り込みに失敗: %w", err)
	}

	f.etag = resp.Header.Get("ETag")
	f.lastModified = resp.Header.Get("Last-Modified")
	state.ApplySuccess(interval)

	f.logger.Info("配信フィードの取り込みが完了しました",
		slog.String("feed_url", f.feedURL),
		slog.Int("item_count", len(parsed.Items)),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// upsertItems はフィード記事をSourceIDで既存行と突き合わせ、
// 新規は挿入、変更があれば更新する。挿入数と更新数を返す。
func (f *Fetcher) upsertItems(ctx context.Context, items []*gofeed.Item) (int, int, error) {
	existing, err := f.streamRepo.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("既存配信の取得に失敗: %w", err)
	}

	byID := make(map[string]*model.LiveStreamItem, len(existing))
	for i := range existing {
		byID[existing[i].SourceID] = &existing[i]
	}

	inserted, updated := 0, 0
	for _, item := range items {
		candidate := mapFeedItem(item)
		if candidate == nil {
			continue
		}

		current, ok := byID[candidate.SourceID]
		if !ok {
			if _, err := f.streamRepo.Insert(ctx, candidate); err != nil {
				return inserted, updated, fmt.Errorf("配信の挿入に失敗: %w", err)
			}
			inserted++
			continue
		}

		if streamChanged(current, candidate) {
			candidate.ID = current.ID
			candidate.Views = current.Views
			if _, err := f.streamRepo.Update(ctx, candidate); err != nil {
				return inserted, updated, fmt.Errorf("配信の更新に失敗: %w", err)
			}
			updated++
		}
	}
	return inserted, updated, nil
}

// mapFeedItem はフィード記事を配信モデルへ変換する。
// 同一性判定に使えるGUIDもリンクもない記事はnilを返してスキップする。
func mapFeedItem(item *gofeed.Item) *model.LiveStreamItem {
	sourceID := item.GUID
	if sourceID == "" {
		sourceID = item.Link
	}
	if sourceID == "" {
		return nil
	}

	date := time.Now()
	if item.PublishedParsed != nil {
		date = *item.PublishedParsed
	}

	thumbnail := ""
	if item.Image != nil {
		thumbnail = item.Image.URL
	}

	return &model.LiveStreamItem{
		SourceID:  sourceID,
		Title:     item.Title,
		Date:      date,
		Thumbnail: thumbnail,
		IsLive:    isLiveItem(item),
		Category:  categoryFromItem(item),
	}
}

// isLiveItem はフィードのカテゴリラベルからライブ配信中かを判定する。
func isLiveItem(item *gofeed.Item) bool {
	for _, c := range item.Categories {
		if strings.EqualFold(strings.TrimSpace(c), "live") {
			return true
		}
	}
	return false
}

// categoryFromItem はフィードのカテゴリラベルを配信種別へ対応付ける。
// 対応付けできない場合はCultoを既定とする。
func categoryFromItem(item *gofeed.Item) model.StreamCategory {
	for _, c := range item.Categories {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "culto", "service":
			return model.StreamCategoryService
		case "estudo", "study":
			return model.StreamCategoryStudy
		case "louvor", "worship":
			return model.StreamCategoryWorship
		case "especial", "special":
			return model.StreamCategorySpecial
		}
	}
	return model.StreamCategoryService
}

// streamChanged は取り込み対象の属性に差分があるかを返す。
// Viewsはアプリ側で加算されるためここでは比較しない。
func streamChanged(current, candidate *model.LiveStreamItem) bool {
	return current.Title != candidate.Title ||
		current.Thumbnail != candidate.Thumbnail ||
		current.IsLive != candidate.IsLive ||
		current.Category != candidate.Category ||
		!current.Date.Equal(candidate.Date)
}
