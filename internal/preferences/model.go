package preferences

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PreferenceResponse holds a session's survey answer. The unique session
// index enforces the at-most-one-per-session invariant; writes go through
// Upsert so a revised answer overwrites the previous one instead of failing.
type PreferenceResponse struct {
	ID               uint    `gorm:"primaryKey;autoIncrement"`
	SessionID        string  `gorm:"uniqueIndex;size:36;not null"`
	Preference       string  `gorm:"size:32;not null"`
	TimeToSelect     float64 // seconds from survey start to selection
	ChangedMindCount int     `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Upsert stores a session's answer, last write wins. The taxonomy
// intentionally allows revising the selection before final submission.
func Upsert(tx *gorm.DB, sessionID, value string, timeToSelect float64, changedMindCount int) error {
	if _, err := Classify(value); err != nil {
		return err
	}

	query := `
		INSERT INTO preference_responses (session_id, preference, time_to_select, changed_mind_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			preference = excluded.preference,
			time_to_select = excluded.time_to_select,
			changed_mind_count = excluded.changed_mind_count,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	if err := tx.Exec(query, sessionID, value, timeToSelect, changedMindCount, now, now).Error; err != nil {
		return fmt.Errorf("failed to upsert preference response: %w", err)
	}
	return nil
}

// ForSession returns the session's response, or nil when none exists.
func ForSession(db *gorm.DB, sessionID string) (*PreferenceResponse, error) {
	var response PreferenceResponse
	err := db.Where("session_id = ?", sessionID).First(&response).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch preference response: %w", err)
	}
	return &response, nil
}
