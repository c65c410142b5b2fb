package conversions

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"funneltrack/internal/preferences"
	"funneltrack/internal/sessions"
)

// SubmitInput carries a conversion submission from the signup form.
type SubmitInput struct {
	SessionID        string
	Name             string
	Email            string
	Preference       string
	TimeToSelect     float64
	ChangedMindCount int
}

// Submit runs the conversion pipeline in its contractual order: required
// fields, session resolution, session-level duplicate, email-level
// duplicate, then the atomic preference upsert + record creation. The
// duplicate checks are ordered so the most specific rejection wins.
func Submit(dbManager cartridge.DBManager, logger *slog.Logger, input *SubmitInput) (*ConversionRecord, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	sessionID, repaired := sessions.ResolveSessionID(logger, input.SessionID)
	if repaired {
		logger.Debug("Conversion submitted with repaired session identifier",
			slog.String("session_id", sessionID))
	}

	db := dbManager.GetConnection()
	email := NormalizeEmail(input.Email)

	if existing, err := BySession(db, sessionID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &DuplicateError{
			Type:          DuplicateTypeSession,
			ExistingEmail: existing.Email,
			RegisteredAt:  existing.CreatedAt,
		}
	}

	if existing, err := ByEmail(db, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &DuplicateError{
			Type:         DuplicateTypeEmail,
			RegisteredAt: existing.CreatedAt,
		}
	}

	var record *ConversionRecord
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if _, _, err := sessions.GetOrCreate(tx, sessionID, sessions.NewSessionInput{}); err != nil {
			return err
		}

		if input.Preference != "" {
			if err := preferences.Upsert(tx, sessionID, input.Preference, input.TimeToSelect, input.ChangedMindCount); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		record = &ConversionRecord{
			SessionID:          &sessionID,
			Name:               strings.TrimSpace(input.Name),
			Email:              email,
			VerificationToken:  uuid.NewString(),
			VerificationSentAt: &now,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		return sessions.ClearBounce(tx, sessionID)
	})
	if err != nil {
		if dup := duplicateFromUniqueViolation(db, err, sessionID, email); dup != nil {
			return nil, dup
		}
		logger.Error("Failed to submit conversion",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return nil, err
	}

	logger.Info("Conversion recorded",
		slog.String("session_id", sessionID),
		slog.Uint64("id", uint64(record.ID)))
	return record, nil
}

// duplicateFromUniqueViolation maps a unique-index violation raised inside
// the write transaction to the business-rule rejection the caller expects.
// The pre-insert duplicate checks run before the transaction opens, so a
// concurrent submission for the same session or email can slip past both;
// the index is the authority. Returns nil for any other error.
func duplicateFromUniqueViolation(db *gorm.DB, err error, sessionID, email string) *DuplicateError {
	switch {
	case isUniqueViolation(err, "session_id"):
		dup := &DuplicateError{Type: DuplicateTypeSession, RegisteredAt: time.Now().UTC()}
		if existing, lookupErr := BySession(db, sessionID); lookupErr == nil && existing != nil {
			dup.ExistingEmail = existing.Email
			dup.RegisteredAt = existing.CreatedAt
		}
		return dup
	case isUniqueViolation(err, "email"):
		dup := &DuplicateError{Type: DuplicateTypeEmail, RegisteredAt: time.Now().UTC()}
		if existing, lookupErr := ByEmail(db, email); lookupErr == nil && existing != nil {
			dup.RegisteredAt = existing.CreatedAt
		}
		return dup
	}
	return nil
}

// isUniqueViolation matches sqlite's constraint error text for one column of
// the conversion_records table, however deeply the driver error is wrapped.
func isUniqueViolation(err error, column string) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed: conversion_records."+column)
}

// validate enforces the required-field contract. The preference value is
// optional but must belong to a known taxonomy when present.
func validate(input *SubmitInput) error {
	fields := make(map[string]string)
	if strings.TrimSpace(input.Name) == "" {
		fields["name"] = "Name is required"
	}
	if strings.TrimSpace(input.Email) == "" {
		fields["email"] = "Email is required"
	} else if !strings.Contains(input.Email, "@") {
		fields["email"] = "Email is invalid"
	}
	if strings.TrimSpace(input.SessionID) == "" {
		fields["session_id"] = "Session is required"
	}
	if input.Preference != "" && !preferences.IsValidValue(input.Preference) {
		fields["preference"] = "Unknown preference value"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// VerifyByToken marks a conversion record as verified. Unknown tokens are a
// no-op returning nil record.
func VerifyByToken(dbManager cartridge.DBManager, logger *slog.Logger, token string) (*ConversionRecord, error) {
	db := dbManager.GetConnection()

	var record ConversionRecord
	err := db.Where("verification_token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if record.IsVerified {
		return &record, nil
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		return tx.Model(&record).Updates(map[string]interface{}{
			"is_verified": true,
			"verified_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
