package events_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/internal/events"
	"funneltrack/internal/sessions"
	"funneltrack/internal/testsupport"
)

func TestTrackEventRejectsUnknownEventType(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	_, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
		SessionID: uuid.NewString(),
		EventType: "clicked_thing",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, events.ErrUnknownEventType)

	var count int64
	dbManager.GetConnection().Model(&events.Event{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestTrackEventCreatesSessionAndEvent(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	sessionID := uuid.NewString()
	result, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
		SessionID: sessionID,
		EventType: events.EventTypePageView,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		PageURL:   "https://example.com/launch?utm_source=google&utm_medium=cpc&utm_campaign=spring",
		PageTitle: "Launch",
	})
	require.NoError(t, err)
	assert.Equal(t, sessionID, result.SessionID)
	assert.False(t, result.SessionRepaired)
	assert.True(t, result.SessionCreated)
	require.NotNil(t, result.Event)

	db := dbManager.GetConnection()
	var session sessions.Session
	require.NoError(t, db.Where("session_id = ?", sessionID).First(&session).Error)
	assert.Equal(t, "google", session.UTMSource)
	assert.Equal(t, "cpc", session.UTMMedium)
	assert.Equal(t, "spring", session.UTMCampaign)
	assert.Equal(t, sessions.DeviceMobile, session.DeviceType)
	assert.Equal(t, 1, session.PageViews)
	assert.False(t, session.IsBounce)
}

func TestTrackEventRepairsMalformedSessionID(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	result, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
		SessionID: "definitely-not-a-uuid",
		EventType: events.EventTypePageView,
	})
	require.NoError(t, err)
	assert.True(t, result.SessionRepaired)

	_, parseErr := uuid.Parse(result.SessionID)
	assert.NoError(t, parseErr)

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().
		Where("session_id = ?", result.SessionID).First(&session).Error)
}

func TestTrackEventSideEffects(t *testing.T) {
	type sideEffectCase struct {
		name     string
		events   []events.EventType
		metadata map[string]interface{}
		validate func(t *testing.T, session *sessions.Session)
	}

	tests := []sideEffectCase{
		{
			name:   "page views accumulate",
			events: []events.EventType{events.EventTypePageView, events.EventTypePageView, events.EventTypePageView},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 3, session.PageViews)
				assert.False(t, session.IsBounce)
			},
		},
		{
			name:   "survey start clears bounce without touching counters",
			events: []events.EventType{events.EventTypeSurveyStart},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 0, session.PageViews)
				assert.False(t, session.IsBounce)
			},
		},
		{
			name:   "ad impression leaves the session untouched",
			events: []events.EventType{events.EventTypeAdImpression},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 0, session.PageViews)
				assert.True(t, session.IsBounce)
			},
		},
		{
			name:     "page exit records time on site from metadata",
			events:   []events.EventType{events.EventTypePageExit},
			metadata: map[string]interface{}{"time_on_page": 90000},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 90, session.TimeOnSite)
			},
		},
		{
			name:   "page exit without metadata is a no-op",
			events: []events.EventType{events.EventTypePageExit},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 0, session.TimeOnSite)
			},
		},
		{
			name:     "page exit with garbage metadata is a no-op",
			events:   []events.EventType{events.EventTypePageExit},
			metadata: map[string]interface{}{"time_on_page": "soon"},
			validate: func(t *testing.T, session *sessions.Session) {
				assert.Equal(t, 0, session.TimeOnSite)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dbManager, logger := testsupport.SetupTestDBManager(t)
			sessionID := uuid.NewString()

			for _, eventType := range tc.events {
				_, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
					SessionID: sessionID,
					EventType: eventType,
					Metadata:  tc.metadata,
				})
				require.NoError(t, err)
			}

			var session sessions.Session
			require.NoError(t, dbManager.GetConnection().
				Where("session_id = ?", sessionID).First(&session).Error)
			tc.validate(t, &session)
		})
	}
}

func TestTrackEventDefaultsTimestamp(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	before := time.Now().UTC()
	result, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
		SessionID: uuid.NewString(),
		EventType: events.EventTypePageView,
	})
	require.NoError(t, err)
	assert.False(t, result.Event.Timestamp.Before(before.Truncate(time.Second)))
}

func TestTrackEventPreservesExplicitTimestamp(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	explicit := time.Date(2026, 5, 12, 14, 30, 0, 0, time.UTC)
	result, err := events.TrackEvent(dbManager, logger, &events.TrackEventInput{
		SessionID: uuid.NewString(),
		EventType: events.EventTypeAdClick,
		Timestamp: explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, result.Event.Timestamp)
}

func TestMetadataRoundTrip(t *testing.T) {
	metadata := map[string]interface{}{"plan": "pro", "steps": float64(3)}

	encoded := events.MetadataFromMap(metadata)
	require.NotEmpty(t, encoded)

	decoded := events.MetadataToMap(encoded)
	assert.Equal(t, metadata, decoded)

	assert.Empty(t, events.MetadataFromMap(nil))
	assert.Empty(t, events.MetadataFromMap(map[string]interface{}{}))
	assert.Empty(t, events.MetadataToMap("not json"))
}
