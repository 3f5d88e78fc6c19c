package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/lumina/internal/model"
	"github.com/hitoshi/lumina/internal/repository"
)

type mockStudyRepo struct {
	listFunc   func(ctx context.Context) ([]model.BibleStudy, error)
	insertFunc func(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error)
	updateFunc func(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error)
}

var _ repository.StudyRepository = (*mockStudyRepo)(nil)

func (m *mockStudyRepo) List(ctx context.Context) ([]model.BibleStudy, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockStudyRepo) Insert(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, s)
	}
	return s, nil
}

func (m *mockStudyRepo) Update(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, s)
	}
	return s, nil
}

type mockEventRepo struct {
	insertFunc func(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)
	updateFunc func(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)
}

var _ repository.EventRepository = (*mockEventRepo)(nil)

func (m *mockEventRepo) List(ctx context.Context) ([]model.CalendarEvent, error) {
	return nil, nil
}

func (m *mockEventRepo) Insert(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, e)
	}
	return e, nil
}

func (m *mockEventRepo) Update(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, e)
	}
	return e, nil
}

type mockProfileRepo struct {
	updateFunc func(ctx context.Context, p *model.Profile) (*model.Profile, error)
}

var _ repository.ProfileRepository = (*mockProfileRepo)(nil)

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	return nil, nil
}

func (m *mockProfileRepo) Insert(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	return p, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, p)
	}
	return p, nil
}

func (m *mockProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	return nil, nil
}

func newTestEditor(studies *mockStudyRepo, events *mockEventRepo, profiles *mockProfileRepo) *Editor {
	if studies == nil {
		studies = &mockStudyRepo{}
	}
	if events == nil {
		events = &mockEventRepo{}
	}
	if profiles == nil {
		profiles = &mockProfileRepo{}
	}
	return NewEditor(studies, events, profiles, nil)
}

func TestEditor_DraftMutualExclusion(t *testing.T) {
	e := newTestEditor(nil, nil, nil)

	if _, err := e.OpenNewStudy(); err != nil {
		t.Fatalf("OpenNewStudy() error = %v", err)
	}

	var apiErr *model.APIError
	if _, err := e.OpenNewEvent(); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDraftConflict {
		t.Errorf("OpenNewEvent() error = %v, want code DRAFT_CONFLICT", err)
	}
	if _, err := e.OpenNewStudy(); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDraftConflict {
		t.Errorf("second OpenNewStudy() error = %v, want code DRAFT_CONFLICT", err)
	}

	e.Discard()
	if _, err := e.OpenNewEvent(); err != nil {
		t.Errorf("OpenNewEvent() after Discard error = %v", err)
	}
}

func TestEditor_CommitNewStudyPrepends(t *testing.T) {
	studies := &mockStudyRepo{
		insertFunc: func(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
			confirmed := *s
			confirmed.ID = "study-9"
			return &confirmed, nil
		},
	}
	e := newTestEditor(studies, nil, nil)

	d, err := e.OpenNewStudy()
	if err != nil {
		t.Fatalf("OpenNewStudy() error = %v", err)
	}
	d.Study.Title = "Gênesis"

	current := []model.BibleStudy{{ID: "study-1", Title: "Êxodo"}}
	merged, err := e.CommitStudy(context.Background(), current)
	if err != nil {
		t.Fatalf("CommitStudy() error = %v", err)
	}

	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].ID != "study-9" || merged[0].Title != "Gênesis" {
		t.Errorf("merged[0] = %+v, want confirmed new row first", merged[0])
	}
	for _, s := range merged {
		if s.ID == "" || s.ID == d.Key {
			t.Errorf("placeholder leaked into collection: %+v", s)
		}
	}
}

func TestEditor_CommitExistingStudyReplacesByID(t *testing.T) {
	studies := &mockStudyRepo{
		updateFunc: func(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
			return s, nil
		},
	}
	e := newTestEditor(studies, nil, nil)

	d, err := e.OpenStudy(model.BibleStudy{ID: "study-1", Title: "Êxodo"})
	if err != nil {
		t.Fatalf("OpenStudy() error = %v", err)
	}
	d.Study.Title = "Êxodo Revisado"

	current := []model.BibleStudy{
		{ID: "study-1", Title: "Êxodo"},
		{ID: "study-2", Title: "Levítico"},
	}
	merged, err := e.CommitStudy(context.Background(), current)
	if err != nil {
		t.Fatalf("CommitStudy() error = %v", err)
	}

	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].Title != "Êxodo Revisado" {
		t.Errorf("merged[0].Title = %q, want replaced in place", merged[0].Title)
	}
	if merged[1].ID != "study-2" {
		t.Errorf("merged[1].ID = %q, want untouched row", merged[1].ID)
	}
}

func TestEditor_CommitFailureKeepsDraft(t *testing.T) {
	studies := &mockStudyRepo{
		insertFunc: func(ctx context.Context, s *model.BibleStudy) (*model.BibleStudy, error) {
			return nil, errors.New("constraint violation")
		},
	}
	e := newTestEditor(studies, nil, nil)

	if _, err := e.OpenNewStudy(); err != nil {
		t.Fatalf("OpenNewStudy() error = %v", err)
	}

	current := []model.BibleStudy{{ID: "study-1"}}
	merged, err := e.CommitStudy(context.Background(), current)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCommitFailed {
		t.Errorf("CommitStudy() error = %v, want code COMMIT_FAILED", err)
	}
	if len(merged) != 1 {
		t.Errorf("len(merged) = %d, want snapshot unchanged", len(merged))
	}

	// 失敗後もドラフトは開いたままで再送信できる
	if _, err := e.OpenNewStudy(); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDraftConflict {
		t.Errorf("OpenNewStudy() after failed commit = %v, want code DRAFT_CONFLICT", err)
	}
}

func TestEditor_CommitEventInsertAndUpdate(t *testing.T) {
	events := &mockEventRepo{
		insertFunc: func(ctx context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error) {
			confirmed := *ev
			confirmed.ID = "event-9"
			return &confirmed, nil
		},
	}
	e := newTestEditor(nil, events, nil)

	d, err := e.OpenNewEvent()
	if err != nil {
		t.Fatalf("OpenNewEvent() error = %v", err)
	}
	d.Event.Title = "Culto de Domingo"

	merged, err := e.CommitEvent(context.Background(), nil)
	if err != nil {
		t.Fatalf("CommitEvent() error = %v", err)
	}
	if len(merged) != 1 || merged[0].ID != "event-9" {
		t.Fatalf("merged = %+v, want single confirmed row", merged)
	}

	// 保存後はドラフトが閉じ、既存行の編集を開ける
	d2, err := e.OpenEvent(merged[0])
	if err != nil {
		t.Fatalf("OpenEvent() error = %v", err)
	}
	if d2.New {
		t.Error("edit draft New = true, want false")
	}
}

func TestEditor_UpdateMember(t *testing.T) {
	profiles := &mockProfileRepo{
		updateFunc: func(ctx context.Context, p *model.Profile) (*model.Profile, error) {
			return p, nil
		},
	}
	e := newTestEditor(nil, nil, profiles)

	p := &model.Profile{ID: "user-1", Name: "Ana", Role: model.RoleAdmin}
	updated, err := e.UpdateMember(context.Background(), p)
	if err != nil {
		t.Fatalf("UpdateMember() error = %v", err)
	}
	if updated.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", updated.Role, model.RoleAdmin)
	}

	profiles.updateFunc = func(ctx context.Context, p *model.Profile) (*model.Profile, error) {
		return nil, errors.New("forbidden")
	}
	var apiErr *model.APIError
	if _, err := e.UpdateMember(context.Background(), p); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCommitFailed {
		t.Errorf("UpdateMember() error = %v, want code COMMIT_FAILED", err)
	}
}
