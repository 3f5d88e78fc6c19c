// Package admin は管理ダッシュボードのドラフト編集と保存を提供する。
package admin

import (
	"github.com/google/uuid"

	"github.com/hitoshi/lumina/internal/model"
)

// StudyDraft は編集中の研究プランを表す。
// Keyはローカルな編集セッションの識別子で、保存されるIDとは別物。
// 新規ドラフトかどうかはNewフラグで判別し、ID文字列の形式には依存しない。
type StudyDraft struct {
	Key   string
	New   bool
	Study model.BibleStudy
}

// EventDraft は編集中のカレンダーイベントを表す。
type EventDraft struct {
	Key   string
	New   bool
	Event model.CalendarEvent
}

// newStudyDraft は新規作成用の空ドラフトを生成する。
func newStudyDraft() *StudyDraft {
	return &StudyDraft{
		Key: uuid.NewString(),
		New: true,
		Study: model.BibleStudy{
			Category: model.CategoryNewTestament,
			Days:     []model.StudyDay{},
		},
	}
}

// editStudyDraft は既存行を元にした編集ドラフトを生成する。
// 元の行を直接変更しないようDaysは複製する。
func editStudyDraft(s model.BibleStudy) *StudyDraft {
	days := make([]model.StudyDay, len(s.Days))
	copy(days, s.Days)
	s.Days = days
	return &StudyDraft{Key: uuid.NewString(), Study: s}
}

// newEventDraft は新規作成用の空ドラフトを生成する。
func newEventDraft() *EventDraft {
	return &EventDraft{
		Key:   uuid.NewString(),
		New:   true,
		Event: model.CalendarEvent{Type: model.EventTypeService},
	}
}

// editEventDraft は既存行を元にした編集ドラフトを生成する。
func editEventDraft(e model.CalendarEvent) *EventDraft {
	return &EventDraft{Key: uuid.NewString(), Event: e}
}

// AddDay は次の連番で空のステップを末尾に追加する。
func (d *StudyDraft) AddDay() {
	d.Study.Days = append(d.Study.Days, model.StudyDay{
		Day: len(d.Study.Days) + 1,
	})
}

// UpdateDay は指定日番号のステップを更新する。該当がなければfalseを返す。
func (d *StudyDraft) UpdateDay(day int, fn func(*model.StudyDay)) bool {
	for i := range d.Study.Days {
		if d.Study.Days[i].Day == day {
			fn(&d.Study.Days[i])
			return true
		}
	}
	return false
}

// RemoveDay は指定日番号のステップを除去し、残りを1始まりの連番に
// 振り直す。相対順序は保たれる。
func (d *StudyDraft) RemoveDay(day int) {
	kept := d.Study.Days[:0]
	for _, sd := range d.Study.Days {
		if sd.Day != day {
			kept = append(kept, sd)
		}
	}
	for i := range kept {
		kept[i].Day = i + 1
	}
	d.Study.Days = kept
}
