// Package testsupport provides shared fixtures for package tests: an
// isolated in-memory database with the full schema, a quiet logger, and
// helpers for seeding sessions, events and conversions.
package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"funneltrack/internal"
	"funneltrack/internal/config"
	"funneltrack/internal/conversions"
	"funneltrack/internal/dailystats"
	"funneltrack/internal/events"
	"funneltrack/internal/preferences"
	"funneltrack/internal/sessions"
	"funneltrack/internal/users"
)

// testDBCache caches test databases by root test name so setup helpers
// called from subtests share the same database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with funneltrack's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns every funneltrack model for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&sessions.Session{},
		&events.Event{},
		&preferences.PreferenceResponse{},
		&conversions.ConversionRecord{},
		&dailystats.DailyAggregate{},
		&users.User{},
	}
}

// SetupTestDB creates a test database with all models migrated. Uses a
// named in-memory database with cache=shared so multiple connections see
// the same data within a test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set FUNNELTRACK_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger that only reports errors
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestSession inserts a session with the given attributes and
// returns its identifier.
func CreateTestSession(t *testing.T, db *gorm.DB, firstSeen time.Time, utmSource, deviceType string) string {
	t.Helper()

	sessionID := uuid.NewString()
	session := &sessions.Session{
		SessionID:    sessionID,
		FirstSeen:    firstSeen.UTC(),
		LastActivity: firstSeen.UTC(),
		UTMSource:    utmSource,
		DeviceType:   deviceType,
		IsBounce:     true,
	}
	if session.DeviceType == "" {
		session.DeviceType = sessions.DeviceUnknown
	}
	require.NoError(t, db.Create(session).Error)
	return sessionID
}

// CreateTestEvent inserts an event row directly, bypassing ingestion side
// effects.
func CreateTestEvent(t *testing.T, db *gorm.DB, sessionID string, eventType events.EventType, timestamp time.Time) {
	t.Helper()

	event := &events.Event{
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: timestamp.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
}

// CreateTestPreference inserts a preference response for a session.
func CreateTestPreference(t *testing.T, db *gorm.DB, sessionID, value string) {
	t.Helper()

	require.NoError(t, db.Create(&preferences.PreferenceResponse{
		SessionID:  sessionID,
		Preference: value,
	}).Error)
}

// CreateTestConversion inserts a conversion record linked to a session.
func CreateTestConversion(t *testing.T, db *gorm.DB, sessionID, email string, createdAt time.Time) *conversions.ConversionRecord {
	t.Helper()

	record := &conversions.ConversionRecord{
		SessionID:         &sessionID,
		Name:              "Test Person",
		Email:             conversions.NormalizeEmail(email),
		VerificationToken: uuid.NewString(),
	}
	require.NoError(t, db.Create(record).Error)
	if !createdAt.IsZero() {
		require.NoError(t, db.Model(record).Update("created_at", createdAt.UTC()).Error)
		record.CreatedAt = createdAt.UTC()
	}
	return record
}

// CreateTestUserForAuth creates a user with a properly hashed password
func CreateTestUserForAuth(t *testing.T, db *gorm.DB, email, password string) *users.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateMinimalTestApp creates a test Fiber app with all routes mounted
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
