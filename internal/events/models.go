// Package events implements the append-only event store and the ingestion
// path that feeds it. Events are immutable; all session mutation happens
// through type-specific side effects applied in the same transaction.
package events

import "time"

// EventType identifies a funnel milestone. The set is closed: anything
// outside it is rejected at ingestion time.
type EventType string

const (
	EventTypeAdImpression   EventType = "ad_impression"
	EventTypeAdClick        EventType = "ad_click"
	EventTypePageView       EventType = "page_view"
	EventTypeSurveyStart    EventType = "survey_start"
	EventTypeSurveyComplete EventType = "survey_complete"
	EventTypeFormFocus      EventType = "form_focus"
	EventTypeFormStart      EventType = "form_start"
	EventTypeFormError      EventType = "form_error"
	EventTypeSignupAttempt  EventType = "signup_attempt"
	EventTypeSignupSuccess  EventType = "signup_success"
	EventTypePageExit       EventType = "page_exit"
)

var validEventTypes = func() map[EventType]struct{} {
	all := AllEventTypes()
	set := make(map[EventType]struct{}, len(all))
	for _, t := range all {
		set[t] = struct{}{}
	}
	return set
}()

// Valid reports whether t belongs to the closed event type enum.
func (t EventType) Valid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// AllEventTypes returns the closed enum in funnel order.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeAdImpression,
		EventTypeAdClick,
		EventTypePageView,
		EventTypeSurveyStart,
		EventTypeSurveyComplete,
		EventTypeFormFocus,
		EventTypeFormStart,
		EventTypeFormError,
		EventTypeSignupAttempt,
		EventTypeSignupSuccess,
		EventTypePageExit,
	}
}

// Event is one tracked user action, tied to exactly one session.
// Rows are created once and never updated.
type Event struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	SessionID         string    `gorm:"index:idx_session_timestamp;size:36;not null"`
	EventType         EventType `gorm:"index;size:32;not null"`
	Timestamp         time.Time `gorm:"index:idx_session_timestamp;not null"`
	PageURL           string    `gorm:"type:text"`
	PageTitle         string
	ElementID         string
	ElementText       string
	Metadata          string `gorm:"type:text"` // JSON-encoded key/value map
	TimeSincePageLoad *int   // milliseconds, as reported by the client
	CreatedAt         time.Time
}
