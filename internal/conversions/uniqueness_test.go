package conversions

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openRecordStore opens an isolated in-memory database with just the
// conversion_records table. The shared testsupport fixtures import this
// package, so the schema-level tests build their own store.
func openRecordStore(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:conversions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ConversionRecord{}))
	return db
}

func newRecord(sessionID *string, email string) *ConversionRecord {
	return &ConversionRecord{
		SessionID:         sessionID,
		Name:              "Ada",
		Email:             email,
		VerificationToken: uuid.NewString(),
	}
}

func TestSessionUniquenessIsEnforcedBySchema(t *testing.T) {
	db := openRecordStore(t)

	sessionID := uuid.NewString()
	require.NoError(t, db.Create(newRecord(&sessionID, "first@example.com")).Error)

	// A second insert for the same session must fail at the index even
	// though the email differs.
	err := db.Create(newRecord(&sessionID, "second@example.com")).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err, "session_id"))

	var count int64
	require.NoError(t, db.Model(&ConversionRecord{}).
		Where("session_id = ?", sessionID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOrphanedRecordsAreNotSessionDuplicates(t *testing.T) {
	db := openRecordStore(t)

	require.NoError(t, db.Create(newRecord(nil, "one@example.com")).Error)
	require.NoError(t, db.Create(newRecord(nil, "two@example.com")).Error)

	var count int64
	require.NoError(t, db.Model(&ConversionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDuplicateFromUniqueViolation(t *testing.T) {
	db := openRecordStore(t)

	sessionID := uuid.NewString()
	require.NoError(t, db.Create(newRecord(&sessionID, "first@example.com")).Error)

	t.Run("session violation resolves the existing record", func(t *testing.T) {
		err := db.Create(newRecord(&sessionID, "second@example.com")).Error
		require.Error(t, err)

		dup := duplicateFromUniqueViolation(db, err, sessionID, "second@example.com")
		require.NotNil(t, dup)
		assert.Equal(t, DuplicateTypeSession, dup.Type)
		assert.Equal(t, "first@example.com", dup.ExistingEmail)
		assert.False(t, dup.RegisteredAt.IsZero())
	})

	t.Run("email violation maps to the email rejection", func(t *testing.T) {
		otherSession := uuid.NewString()
		err := db.Create(newRecord(&otherSession, "first@example.com")).Error
		require.Error(t, err)

		dup := duplicateFromUniqueViolation(db, err, otherSession, "first@example.com")
		require.NotNil(t, dup)
		assert.Equal(t, DuplicateTypeEmail, dup.Type)
		assert.Empty(t, dup.ExistingEmail)
	})

	t.Run("unrelated errors pass through", func(t *testing.T) {
		dup := duplicateFromUniqueViolation(db, errors.New("disk I/O error"), sessionID, "first@example.com")
		assert.Nil(t, dup)
	})
}
