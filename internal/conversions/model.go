// Package conversions holds the terminal success record of the funnel and
// the submission pipeline that creates it.
package conversions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RegistrationDateFormat is the human-facing format surfaced in duplicate
// rejections, e.g. "January 2, 2006 at 3:04 PM".
const RegistrationDateFormat = "January 2, 2006 at 3:04 PM"

// ConversionRecord is created once per unique email when a visitor completes
// the signup form. The session back-reference is nullable and survives
// session deletion; the unique index enforces at most one record per
// session (NULLs are distinct, so orphaned records coexist).
type ConversionRecord struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	SessionID *string `gorm:"uniqueIndex;size:36"`
	Name      string  `gorm:"not null"`
	Email     string  `gorm:"uniqueIndex;not null"` // stored lower-cased

	// Verification workflow
	IsVerified         bool   `gorm:"not null;default:false"`
	VerificationToken  string `gorm:"uniqueIndex;size:36"`
	VerificationSentAt *time.Time
	VerifiedAt         *time.Time

	// Engagement counters
	LoginCount int `gorm:"not null;default:0"`
	LastLogin  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail lower-cases and trims an email so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ByEmail returns the record for an email, or nil when none exists.
func ByEmail(db *gorm.DB, email string) (*ConversionRecord, error) {
	var record ConversionRecord
	err := db.Where("email = ?", NormalizeEmail(email)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch conversion record by email: %w", err)
	}
	return &record, nil
}

// BySession returns the record linked to a session, or nil when none exists.
func BySession(db *gorm.DB, sessionID string) (*ConversionRecord, error) {
	var record ConversionRecord
	err := db.Where("session_id = ?", sessionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch conversion record by session: %w", err)
	}
	return &record, nil
}

// EmailExists reports whether an email is already registered,
// case-insensitively.
func EmailExists(db *gorm.DB, email string) (bool, error) {
	var count int64
	err := db.Model(&ConversionRecord{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}
