package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/lumina/internal/backend"
	"github.com/hitoshi/lumina/internal/model"
)

// コレクションのテーブル名。
const (
	studiesTable      = "studies"
	eventsTable       = "events"
	streamsTable      = "streams"
	groupsTable       = "groups"
	transactionsTable = "transactions"
)

// BackendStudyRepo はホスト型データサービスを使用する研究プランリポジトリ。
type BackendStudyRepo struct {
	client *backend.Client
}

// NewBackendStudyRepo はBackendStudyRepoを生成する。
func NewBackendStudyRepo(client *backend.Client) *BackendStudyRepo {
	return &BackendStudyRepo{client: client}
}

var _ StudyRepository = (*BackendStudyRepo)(nil)

// List は全研究プランを取得する。
func (r *BackendStudyRepo) List(ctx context.Context) ([]model.BibleStudy, error) {
	rows, err := backend.SelectAll[model.BibleStudy](ctx, r.client, studiesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	return rows, nil
}

// Insert は研究プランを作成し、採番済みIDを含む確定行を返す。
func (r *BackendStudyRepo) Insert(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
	created, err := backend.InsertOne(ctx, r.client, studiesTable, *s)
	if err != nil {
		return nil, fmt.Errorf("failed to insert study: %w", err)
	}
	return created, nil
}

// Update は指定IDの研究プランを更新し、更新後の行を返す。
func (r *BackendStudyRepo) Update(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
	updated, err := backend.UpdateOne(ctx, r.client, studiesTable, s.ID, *s)
	if err != nil {
		return nil, fmt.Errorf("failed to update study: %w", err)
	}
	return updated, nil
}

// BackendEventRepo はホスト型データサービスを使用するイベントリポジトリ。
type BackendEventRepo struct {
	client *backend.Client
}

// NewBackendEventRepo はBackendEventRepoを生成する。
func NewBackendEventRepo(client *backend.Client) *BackendEventRepo {
	return &BackendEventRepo{client: client}
}

var _ EventRepository = (*BackendEventRepo)(nil)

// List は全イベントを取得する。
func (r *BackendEventRepo) List(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := backend.SelectAll[model.CalendarEvent](ctx, r.client, eventsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return rows, nil
}

// Insert はイベントを作成し、採番済みIDを含む確定行を返す。
func (r *BackendEventRepo) Insert(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	created, err := backend.InsertOne(ctx, r.client, eventsTable, *e)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return created, nil
}

// Update は指定IDのイベントを更新し、更新後の行を返す。
func (r *BackendEventRepo) Update(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	updated, err := backend.UpdateOne(ctx, r.client, eventsTable, e.ID, *e)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

// BackendStreamRepo はホスト型データサービスを使用する配信リポジトリ。
type BackendStreamRepo struct {
	client *backend.Client
}

// NewBackendStreamRepo はBackendStreamRepoを生成する。
func NewBackendStreamRepo(client *backend.Client) *BackendStreamRepo {
	return &BackendStreamRepo{client: client}
}

var _ StreamRepository = (*BackendStreamRepo)(nil)

// List は全配信を取得する。
func (r *BackendStreamRepo) List(ctx context.Context) ([]model.LiveStreamItem, error) {
	rows, err := backend.SelectAll[model.LiveStreamItem](ctx, r.client, streamsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	return rows, nil
}

// Insert は配信を作成し、採番済みIDを含む確定行を返す。
func (r *BackendStreamRepo) Insert(ctx context.Context, s *model.LiveStreamItem) (*model.LiveStreamItem, error) {
	created, err := backend.InsertOne(ctx, r.client, streamsTable, *s)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stream: %w", err)
	}
	return created, nil
}

// Update は指定IDの配信を更新し、更新後の行を返す。
func (r *BackendStreamRepo) Update(ctx context.Context, s *model.LiveStreamItem) (*model.LiveStreamItem, error) {
	updated, err := backend.UpdateOne(ctx, r.client, streamsTable, s.ID, *s)
	if err != nil {
		return nil, fmt.Errorf("failed to update stream: %w", err)
	}
	return updated, nil
}

// BackendGroupRepo はホスト型データサービスを使用する小グループリポジトリ。
type BackendGroupRepo struct {
	client *backend.Client
}

// NewBackendGroupRepo はBackendGroupRepoを生成する。
func NewBackendGroupRepo(client *backend.Client) *BackendGroupRepo {
	return &BackendGroupRepo{client: client}
}

var _ GroupRepository = (*BackendGroupRepo)(nil)

// List は全小グループを取得する。
func (r *BackendGroupRepo) List(ctx context.Context) ([]model.SmallGroup, error) {
	rows, err := backend.SelectAll[model.SmallGroup](ctx, r.client, groupsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return rows, nil
}

// BackendTransactionRepo はホスト型データサービスを使用する献金履歴リポジトリ。
type BackendTransactionRepo struct {
	client *backend.Client
}

// NewBackendTransactionRepo はBackendTransactionRepoを生成する。
func NewBackendTransactionRepo(client *backend.Client) *BackendTransactionRepo {
	return &BackendTransactionRepo{client: client}
}

var _ TransactionRepository = (*BackendTransactionRepo)(nil)

// ListByProfile は指定会員の献金履歴を取得する。
func (r *BackendTransactionRepo) ListByProfile(ctx context.Context, profileID string) ([]model.Transaction, error) {
	rows, err := backend.SelectWhere[model.Transaction](ctx, r.client, transactionsTable, "profile_id", profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, nil
}
