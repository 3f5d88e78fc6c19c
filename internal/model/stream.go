package model

import "time"

// StreamCategory は配信の種別を表す。
type StreamCategory string

const (
	StreamCategoryService StreamCategory = "Culto"
	StreamCategoryStudy   StreamCategory = "Estudo"
	StreamCategoryWorship StreamCategory = "Louvor"
	StreamCategorySpecial StreamCategory = "Evento Especial"
)

// LiveStreamItem はライブ配信・アーカイブ動画の1件を表す。
// SourceIDは配信元フィードのGUIDで、ワーカーによる取り込みの同一性判定に使う。
type LiveStreamItem struct {
	ID        string         `json:"id,omitempty"`
	SourceID  string         `json:"source_id"`
	Title     string         `json:"title"`
	Date      time.Time      `json:"date"`
	Thumbnail string         `json:"thumbnail"`
	IsLive    bool           `json:"is_live"`
	Views     int            `json:"views"`
	Category  StreamCategory `json:"category"`
}
