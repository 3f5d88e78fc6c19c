// Package repository はバックエンドコレクションへのアクセスインターフェースを定義する。
// 各コレクションの取得結果は常に権威的な全体スナップショットとして扱い、
// クライアント側での差分マージは行わない。
package repository

import (
	"context"

	"github.com/hitoshi/lumina/internal/model"
)

// ProfileRepository は会員プロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	// 「行が見つからない」は期待される非致命の結果であり、
	// 接続・設定起因の失敗とは区別される。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Insert はプロフィールを作成し、確定した行を返す。
	// IDはIdentityの安定識別子をそのまま使い、ここで採番しない。
	Insert(ctx context.Context, p *model.Profile) (*model.Profile, error)

	// Update は指定IDのプロフィールを更新し、更新後の行を返す。
	Update(ctx context.Context, p *model.Profile) (*model.Profile, error)

	// List は全会員のプロフィールを取得する。管理画面の会員一覧用。
	List(ctx context.Context) ([]model.Profile, error)
}

// StudyRepository は聖書研究プランの永続化インターフェース。
type StudyRepository interface {
	// List は全研究プランを取得する。
	List(ctx context.Context) ([]model.BibleStudy, error)

	// Insert は研究プランを作成し、採番済みIDを含む確定行を返す。
	Insert(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error)

	// Update は指定IDの研究プランを更新し、更新後の行を返す。
	Update(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error)
}

// EventRepository はカレンダーイベントの永続化インターフェース。
type EventRepository interface {
	// List は全イベントを取得する。
	List(ctx context.Context) ([]model.CalendarEvent, error)

	// Insert はイベントを作成し、採番済みIDを含む確定行を返す。
	Insert(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)

	// Update は指定IDのイベントを更新し、更新後の行を返す。
	Update(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)
}

// StreamRepository はライブ配信一覧の永続化インターフェース。
type StreamRepository interface {
	// List は全配信を取得する。
	List(ctx context.Context) ([]model.LiveStreamItem, error)

	// Insert は配信を作成し、採番済みIDを含む確定行を返す。
	Insert(ctx context.Context, s *model.LiveStreamItem) (*model.LiveStreamItem, error)

	// Update は指定IDの配信を更新し、更新後の行を返す。
	Update(ctx context.Context, s *model.LiveStreamItem) (*model.LiveStreamItem, error)
}

// GroupRepository は小グループ一覧の取得インターフェース。
type GroupRepository interface {
	// List は全小グループを取得する。
	List(ctx context.Context) ([]model.SmallGroup, error)
}

// TransactionRepository は献金履歴の取得インターフェース。閲覧のみ。
type TransactionRepository interface {
	// ListByProfile は指定会員の献金履歴を取得する。
	ListByProfile(ctx context.Context, profileID string) ([]model.Transaction, error)
}
