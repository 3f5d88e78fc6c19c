package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/lumina/internal/backend"
	"github.com/hitoshi/lumina/internal/model"
)

// profilesTable はプロフィールコレクションのテーブル名。
const profilesTable = "profiles"

// BackendProfileRepo はホスト型データサービスを使用するプロフィールリポジトリ。
type BackendProfileRepo struct {
	client *backend.Client
}

// NewBackendProfileRepo はBackendProfileRepoを生成する。
func NewBackendProfileRepo(client *backend.Client) *BackendProfileRepo {
	return &BackendProfileRepo{client: client}
}

var _ ProfileRepository = (*BackendProfileRepo)(nil)

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *BackendProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p, err := backend.SelectOne[model.Profile](ctx, r.client, profilesTable, id)
	if errors.Is(err, backend.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	return p, nil
}

// Insert はプロフィールを作成し、確定した行を返す。
func (r *BackendProfileRepo) Insert(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	created, err := backend.InsertOne(ctx, r.client, profilesTable, *p)
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	return created, nil
}

// Update は指定IDのプロフィールを更新し、更新後の行を返す。
func (r *BackendProfileRepo) Update(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	updated, err := backend.UpdateOne(ctx, r.client, profilesTable, p.ID, *p)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return updated, nil
}

// List は全会員のプロフィールを取得する。
func (r *BackendProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	rows, err := backend.SelectAll[model.Profile](ctx, r.client, profilesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return rows, nil
}
