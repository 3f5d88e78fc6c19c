package admin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/lumina/internal/model"
	"github.com/hitoshi/lumina/internal/repository"
)

// MetricsRecorder は管理操作メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordCommit(collection string, err error)
}

// Editor は管理ダッシュボードの編集セッションを管理する。
// 開けるドラフトは種別を問わず同時に1つまで。保存が失敗しても
// ドラフトは保持され、修正して再送信できる。
type Editor struct {
	studies  repository.StudyRepository
	events   repository.EventRepository
	profiles repository.ProfileRepository
	metrics  MetricsRecorder // nil可

	mu         sync.Mutex
	studyDraft *StudyDraft
	eventDraft *EventDraft
}

// NewEditor はEditorを生成する。
func NewEditor(studies repository.StudyRepository, events repository.EventRepository, profiles repository.ProfileRepository, metrics MetricsRecorder) *Editor {
	return &Editor{
		studies:  studies,
		events:   events,
		profiles: profiles,
		metrics:  metrics,
	}
}

// OpenNewStudy は新規研究プランのドラフトを開く。
// 既に開いているドラフトがあればエラーを返す。
func (e *Editor) OpenNewStudy() (*StudyDraft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.studyDraft != nil || e.eventDraft != nil {
		return nil, model.NewDraftConflictError()
	}
	e.studyDraft = newStudyDraft()
	return e.studyDraft, nil
}

// OpenStudy は既存の研究プランの編集ドラフトを開く。
func (e *Editor) OpenStudy(s model.BibleStudy) (*StudyDraft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.studyDraft != nil || e.eventDraft != nil {
		return nil, model.NewDraftConflictError()
	}
	e.studyDraft = editStudyDraft(s)
	return e.studyDraft, nil
}

// OpenNewEvent は新規イベントのドラフトを開く。
func (e *Editor) OpenNewEvent() (*EventDraft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.studyDraft != nil || e.eventDraft != nil {
		return nil, model.NewDraftConflictError()
	}
	e.eventDraft = newEventDraft()
	return e.eventDraft, nil
}

// OpenEvent は既存イベントの編集ドラフトを開く。
func (e *Editor) OpenEvent(ev model.CalendarEvent) (*EventDraft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.studyDraft != nil || e.eventDraft != nil {
		return nil, model.NewDraftConflictError()
	}
	e.eventDraft = editEventDraft(ev)
	return e.eventDraft, nil
}

// Discard は開いているドラフトを破棄する。開いていなければ何もしない。
func (e *Editor) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.studyDraft = nil
	e.eventDraft = nil
}

// CommitStudy は開いている研究プランのドラフトを保存する。
// 新規ドラフトは挿入、既存は更新。成功時はドラフトを閉じ、渡された
// スナップショットにサーバー確定行をマージした結果を返す。
// プレースホルダーやローカルキーがコレクションに混入することはない。
// 失敗時はドラフトを保持したまま元のスナップショットを返す。
func (e *Editor) CommitStudy(ctx context.Context, current []model.BibleStudy) ([]model.BibleStudy, error) {
	e.mu.Lock()
	draft := e.studyDraft
	e.mu.Unlock()
	if draft == nil {
		return current, model.NewCommitFailedError("studies", "nenhuma edição aberta")
	}

	var (
		confirmed *model.BibleStudy
		err       error
	)
	if draft.New {
		confirmed, err = e.studies.Insert(ctx, &draft.Study)
	} else {
		confirmed, err = e.studies.Update(ctx, &draft.Study)
	}
	if e.metrics != nil {
		e.metrics.RecordCommit("studies", err)
	}
	if err != nil {
		slog.Error("study commit failed",
			slog.Bool("new", draft.New),
			slog.String("error", err.Error()),
		)
		return current, model.NewCommitFailedError("studies", err.Error())
	}

	e.mu.Lock()
	e.studyDraft = nil
	e.mu.Unlock()

	slog.Info("study committed",
		slog.String("study_id", confirmed.ID),
		slog.Bool("new", draft.New),
	)
	return mergeStudies(current, *confirmed), nil
}

// CommitEvent は開いているイベントのドラフトを保存する。
// 保存とマージの規則はCommitStudyと同じ。
func (e *Editor) CommitEvent(ctx context.Context, current []model.CalendarEvent) ([]model.CalendarEvent, error) {
	e.mu.Lock()
	draft := e.eventDraft
	e.mu.Unlock()
	if draft == nil {
		return current, model.NewCommitFailedError("events", "nenhuma edição aberta")
	}

	var (
		confirmed *model.CalendarEvent
		err       error
	)
	if draft.New {
		confirmed, err = e.events.Insert(ctx, &draft.Event)
	} else {
		confirmed, err = e.events.Update(ctx, &draft.Event)
	}
	if e.metrics != nil {
		e.metrics.RecordCommit("events", err)
	}
	if err != nil {
		slog.Error("event commit failed",
			slog.Bool("new", draft.New),
			slog.String("error", err.Error()),
		)
		return current, model.NewCommitFailedError("events", err.Error())
	}

	e.mu.Lock()
	e.eventDraft = nil
	e.mu.Unlock()

	slog.Info("event committed",
		slog.String("event_id", confirmed.ID),
		slog.Bool("new", draft.New),
	)
	return mergeEvents(current, *confirmed), nil
}

// UpdateMember は会員プロフィールを更新する。
// プロフィール行の作成はセッション確立側の責務のため、ここは更新のみ。
func (e *Editor) UpdateMember(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	updated, err := e.profiles.Update(ctx, p)
	if e.metrics != nil {
		e.metrics.RecordCommit("profiles", err)
	}
	if err != nil {
		slog.Error("member update failed",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewCommitFailedError("profiles", err.Error())
	}
	return updated, nil
}

// mergeStudies はサーバー確定行をスナップショットへ反映する。
// 同一IDの行があれば置き換え、なければ先頭に追加する。
func mergeStudies(current []model.BibleStudy, confirmed model.BibleStudy) []model.BibleStudy {
	for i := range current {
		if current[i].ID == confirmed.ID {
			merged := make([]model.BibleStudy, len(current))
			copy(merged, current)
			merged[i] = confirmed
			return merged
		}
	}
	merged := make([]model.BibleStudy, 0, len(current)+1)
	merged = append(merged, confirmed)
	return append(merged, current...)
}

// mergeEvents はmergeStudiesと同じ規則でイベントをマージする。
func mergeEvents(current []model.CalendarEvent, confirmed model.CalendarEvent) []model.CalendarEvent {
	for i := range current {
		if current[i].ID == confirmed.ID {
			merged := make([]model.CalendarEvent, len(current))
			copy(merged, current)
			merged[i] = confirmed
			return merged
		}
	}
	merged := make([]model.CalendarEvent, 0, len(current)+1)
	merged = append(merged, confirmed)
	return append(merged, current...)
}
