package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewSessionInput carries the enrichment attributes applied when a session
// row is first created. Subsequent events never overwrite them.
type NewSessionInput struct {
	IPAddress   string
	UserAgent   string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string
	Referrer    string
	CountryCode string
	City        string
	Region      string
	DeviceType  string
	Browser     string
	OS          string
}

// ResolveSessionID validates an externally supplied session identifier.
// Malformed or empty identifiers are silently replaced with a fresh UUID so
// tracking stays best-effort; the caller still reports success upstream.
func ResolveSessionID(logger *slog.Logger, raw string) (id string, repaired bool) {
	if _, err := uuid.Parse(raw); err != nil {
		fresh := uuid.NewString()
		logger.Warn("Invalid session identifier, generating a new one",
			slog.String("received", raw),
			slog.String("generated", fresh))
		return fresh, true
	}
	return raw, false
}

// GetOrCreate fetches the session for sessionID, creating it with the given
// attributes when absent. Creation is idempotent on the unique session_id
// index: a concurrent insert race falls back to re-fetching the winner's row.
func GetOrCreate(tx *gorm.DB, sessionID string, input NewSessionInput) (*Session, bool, error) {
	var session Session
	err := tx.Where("session_id = ?", sessionID).First(&session).Error
	if err == nil {
		return &session, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up session: %w", err)
	}

	now := time.Now().UTC()
	deviceType := input.DeviceType
	if deviceType == "" {
		deviceType = DeviceUnknown
	}
	session = Session{
		SessionID:    sessionID,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		FirstSeen:    now,
		LastActivity: now,
		UTMSource:    input.UTMSource,
		UTMMedium:    input.UTMMedium,
		UTMCampaign:  input.UTMCampaign,
		UTMContent:   input.UTMContent,
		UTMTerm:      input.UTMTerm,
		Referrer:     input.Referrer,
		CountryCode:  input.CountryCode,
		City:         input.City,
		Region:       input.Region,
		DeviceType:   deviceType,
		Browser:      input.Browser,
		OS:           input.OS,
		IsBounce:     true,
	}
	if err := tx.Create(&session).Error; err != nil {
		var existing Session
		if fetchErr := tx.Where("session_id = ?", sessionID).First(&existing).Error; fetchErr == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, true, nil
}

// Touch advances the session's last-activity timestamp.
func Touch(tx *gorm.DB, sessionID string, at time.Time) error {
	err := tx.Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("last_activity", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// RecordPageView bumps the page view counter and clears the bounce flag.
func RecordPageView(tx *gorm.DB, sessionID string) error {
	err := tx.Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"page_views": gorm.Expr("page_views + 1"),
			"is_bounce":  false,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record page view: %w", err)
	}
	return nil
}

// ClearBounce marks the session as engaged.
func ClearBounce(tx *gorm.DB, sessionID string) error {
	err := tx.Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("is_bounce", false).Error
	if err != nil {
		return fmt.Errorf("failed to clear bounce flag: %w", err)
	}
	return nil
}

// RecordTimeOnSite folds a page-exit "time on page" reading (seconds) into
// the session. The maximum of the prior and new value wins so overlapping
// exit signals never double count.
func RecordTimeOnSite(tx *gorm.DB, sessionID string, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	err := tx.Model(&Session{}).
		Where("session_id = ? AND time_on_site < ?", sessionID, seconds).
		Update("time_on_site", seconds).Error
	if err != nil {
		return fmt.Errorf("failed to record time on site: %w", err)
	}
	return nil
}
