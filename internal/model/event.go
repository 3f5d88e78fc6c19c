package model

import "time"

// EventType はイベントの種別を表す。
type EventType string

const (
	EventTypeService  EventType = "Culto"
	EventTypeSocial   EventType = "Social"
	EventTypeOutreach EventType = "Ação Social"
	EventTypeStudy    EventType = "Estudo"
)

// CalendarEvent はイベントカレンダーの1件を表す。
type CalendarEvent struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Type        EventType `json:"type"`
	CoverImage  string    `json:"cover_image"`
	Description string    `json:"description"`
}
