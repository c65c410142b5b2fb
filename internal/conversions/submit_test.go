package conversions_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/internal/conversions"
	"funneltrack/internal/preferences"
	"funneltrack/internal/sessions"
	"funneltrack/internal/testsupport"
)

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		input conversions.SubmitInput
		field string
	}{
		{
			name:  "missing name",
			input: conversions.SubmitInput{SessionID: uuid.NewString(), Email: "a@example.com"},
			field: "name",
		},
		{
			name:  "missing email",
			input: conversions.SubmitInput{SessionID: uuid.NewString(), Name: "Ada"},
			field: "email",
		},
		{
			name:  "email without at sign",
			input: conversions.SubmitInput{SessionID: uuid.NewString(), Name: "Ada", Email: "nope"},
			field: "email",
		},
		{
			name:  "missing session",
			input: conversions.SubmitInput{Name: "Ada", Email: "a@example.com"},
			field: "session_id",
		},
		{
			name: "unknown preference value",
			input: conversions.SubmitInput{
				SessionID:  uuid.NewString(),
				Name:       "Ada",
				Email:      "a@example.com",
				Preference: "carrier_pigeon",
			},
			field: "preference",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dbManager, logger := testsupport.SetupTestDBManager(t)

			_, err := conversions.Submit(dbManager, logger, &tc.input)
			require.Error(t, err)

			var validationErr *conversions.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, validationErr.Fields, tc.field)
		})
	}
}

func TestSubmitCreatesRecordPreferenceAndClearsBounce(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	sessionID := testsupport.CreateTestSession(t, db, time.Now().UTC(), "google", sessions.DeviceDesktop)

	record, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID:        sessionID,
		Name:             "  Ada Lovelace  ",
		Email:            "Ada@Example.COM",
		Preference:       preferences.ValueUpdates,
		TimeToSelect:     3.2,
		ChangedMindCount: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Ada Lovelace", record.Name)
	assert.Equal(t, "ada@example.com", record.Email)
	assert.NotEmpty(t, record.VerificationToken)
	require.NotNil(t, record.SessionID)
	assert.Equal(t, sessionID, *record.SessionID)

	var pref preferences.PreferenceResponse
	require.NoError(t, db.Where("session_id = ?", sessionID).First(&pref).Error)
	assert.Equal(t, preferences.ValueUpdates, pref.Preference)

	var session sessions.Session
	require.NoError(t, db.Where("session_id = ?", sessionID).First(&session).Error)
	assert.False(t, session.IsBounce)
}

func TestSubmitSessionDuplicateWinsOverEmailDuplicate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	sessionID := uuid.NewString()
	first, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: sessionID,
		Name:      "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	// Same session, different email: the session check must fire first and
	// disclose the email already registered for that session.
	_, err = conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: sessionID,
		Name:      "Ada Again",
		Email:     "other@example.com",
	})
	require.Error(t, err)

	var dup *conversions.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, conversions.DuplicateTypeSession, dup.Type)
	assert.Equal(t, first.Email, dup.ExistingEmail)
	assert.False(t, dup.RegisteredAt.IsZero())
}

func TestSubmitEmailDuplicateAcrossSessions(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	_, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: uuid.NewString(),
		Name:      "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	_, err = conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: uuid.NewString(),
		Name:      "Impostor",
		Email:     "ADA@example.com", // case-insensitive match
	})
	require.Error(t, err)

	var dup *conversions.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, conversions.DuplicateTypeEmail, dup.Type)
	assert.Empty(t, dup.ExistingEmail)
}

func TestSubmitRepairsMalformedSessionID(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	record, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: "broken-session",
		Name:      "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, record.SessionID)

	_, parseErr := uuid.Parse(*record.SessionID)
	assert.NoError(t, parseErr)
}

func TestEmailExistsIsCaseInsensitive(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	_, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: uuid.NewString(),
		Name:      "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	exists, err := conversions.EmailExists(db, "  ADA@EXAMPLE.COM ")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = conversions.EmailExists(db, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVerifyByToken(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	record, err := conversions.Submit(dbManager, logger, &conversions.SubmitInput{
		SessionID: uuid.NewString(),
		Name:      "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)
	require.False(t, record.IsVerified)

	t.Run("unknown token is a no-op", func(t *testing.T) {
		verified, err := conversions.VerifyByToken(dbManager, logger, "no-such-token")
		require.NoError(t, err)
		assert.Nil(t, verified)
	})

	t.Run("valid token marks the record verified", func(t *testing.T) {
		verified, err := conversions.VerifyByToken(dbManager, logger, record.VerificationToken)
		require.NoError(t, err)
		require.NotNil(t, verified)

		var stored conversions.ConversionRecord
		require.NoError(t, dbManager.GetConnection().First(&stored, record.ID).Error)
		assert.True(t, stored.IsVerified)
		assert.NotNil(t, stored.VerifiedAt)
	})

	t.Run("verification is idempotent", func(t *testing.T) {
		verified, err := conversions.VerifyByToken(dbManager, logger, record.VerificationToken)
		require.NoError(t, err)
		require.NotNil(t, verified)
		assert.True(t, verified.IsVerified)
	})
}
