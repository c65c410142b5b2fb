package analytics_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/internal/analytics"
	"funneltrack/internal/conversions"
	"funneltrack/internal/dailystats"
	"funneltrack/internal/events"
	"funneltrack/internal/preferences"
	"funneltrack/internal/sessions"
	"funneltrack/internal/testsupport"
	"funneltrack/internal/timeframe"
)

func TestGetFunnelCounts(t *testing.T) {
	analytics.ResetFunnelCache()
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s1 := testsupport.CreateTestSession(t, db, now, "google", sessions.DeviceDesktop)
	s2 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)

	testsupport.CreateTestEvent(t, db, s1, events.EventTypePageView, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypePageView, now)
	testsupport.CreateTestEvent(t, db, s2, events.EventTypePageView, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypeSurveyStart, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypeSurveyComplete, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypeFormStart, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypeSignupAttempt, now)
	testsupport.CreateTestEvent(t, db, s1, events.EventTypeSignupSuccess, now)
	testsupport.CreateTestConversion(t, db, s1, "s1@example.com", time.Time{})

	funnel, err := analytics.GetFunnel(db, analytics.QueryParams{TimeFrame: timeframe.LastDays(1)})
	require.NoError(t, err)

	assert.Equal(t, 2, funnel.TotalSessions)
	assert.Equal(t, 3, funnel.PageViews)
	assert.Equal(t, 1, funnel.SurveysStarted)
	assert.Equal(t, 1, funnel.SurveysCompleted)
	assert.Equal(t, 1, funnel.FormsStarted)
	assert.Equal(t, 1, funnel.SignupAttempts)
	assert.Equal(t, 1, funnel.SuccessfulSignups)
	assert.Equal(t, 1, funnel.Conversions)
}

func TestGetFunnelCountsDistinctConversionSessions(t *testing.T) {
	analytics.ResetFunnelCache()
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s1 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
	s2 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)

	// Only records with a session back-reference count; orphans whose
	// session was deleted are excluded from the funnel step.
	testsupport.CreateTestConversion(t, db, s1, "first@example.com", time.Time{})
	testsupport.CreateTestConversion(t, db, s2, "second@example.com", time.Time{})
	require.NoError(t, db.Create(&conversions.ConversionRecord{
		Name:              "Orphan",
		Email:             "orphan@example.com",
		VerificationToken: uuid.NewString(),
	}).Error)

	funnel, err := analytics.GetFunnel(db, analytics.QueryParams{TimeFrame: timeframe.LastDays(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, funnel.Conversions)
}

func TestGetPreferenceBreakdownIgnoresInvalidStoredValues(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s1 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
	s2 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
	s3 := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)

	testsupport.CreateTestPreference(t, db, s1, preferences.ValueUpdates)
	testsupport.CreateTestPreference(t, db, s2, preferences.ValueYesWouldUse)
	testsupport.CreateTestPreference(t, db, s3, "smoke_signals")

	breakdown, err := analytics.GetPreferenceBreakdown(db, analytics.QueryParams{TimeFrame: timeframe.LastDays(1)})
	require.NoError(t, err)

	assert.Equal(t, 2, breakdown.TotalResponses)
	assert.NotContains(t, breakdown.Counts, "smoke_signals")
}

func TestGetTrafficAttribution(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	g1 := testsupport.CreateTestSession(t, db, now, "google", sessions.DeviceDesktop)
	testsupport.CreateTestSession(t, db, now, "google", sessions.DeviceMobile)
	testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
	testsupport.CreateTestConversion(t, db, g1, "g1@example.com", time.Time{})

	attribution, err := analytics.GetTrafficAttribution(db, analytics.QueryParams{TimeFrame: timeframe.LastDays(1)})
	require.NoError(t, err)

	assert.Equal(t, 2, attribution.TotalSources)

	bySource := make(map[string]analytics.SourceStats)
	for _, s := range attribution.Sources {
		bySource[s.Source] = s
	}

	google := bySource["google"]
	assert.Equal(t, 2, google.Sessions)
	assert.Equal(t, 1, google.Conversions)
	assert.Equal(t, 50.0, google.ConversionRate)

	direct := bySource[analytics.DirectTrafficSource]
	assert.Equal(t, 1, direct.Sessions)
	assert.Equal(t, 0, direct.Conversions)

	require.NotNil(t, attribution.TopConvertingSource)
	assert.Equal(t, "google", attribution.TopConvertingSource.Source)
}

func TestGetDeviceBreakdown(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)
	testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)
	testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)

	breakdown, err := analytics.GetDeviceBreakdown(db, analytics.QueryParams{TimeFrame: timeframe.LastDays(1)})
	require.NoError(t, err)

	require.Len(t, breakdown, 2)
	assert.Equal(t, sessions.DeviceMobile, breakdown[0].DeviceType)
	assert.Equal(t, 2, breakdown[0].Sessions)
	assert.Equal(t, sessions.DeviceDesktop, breakdown[1].DeviceType)
	assert.Equal(t, 1, breakdown[1].Sessions)
}

func TestGetRealTimeStats(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	active := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
	stale := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)
	require.NoError(t, db.Model(&sessions.Session{}).
		Where("session_id = ?", stale).
		Update("last_activity", now.Add(-30*time.Minute)).Error)
	testsupport.CreateTestConversion(t, db, active, "live@example.com", time.Time{})

	stats, err := analytics.GetRealTimeStats(db, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SessionsToday)
	assert.Equal(t, 1, stats.SignupsToday)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.TotalSignups)
	require.NotNil(t, stats.LastSignupAt)
}

func TestDailyTrendsFallBackToRawFacts(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	testsupport.CreateTestSession(t, db, yesterday.Add(8*time.Hour), "", sessions.DeviceDesktop)
	testsupport.CreateTestSession(t, db, yesterday.Add(9*time.Hour), "", sessions.DeviceMobile)
	testsupport.CreateTestSession(t, db, today.Add(time.Hour), "", sessions.DeviceDesktop)

	tf := timeframe.LastDays(2)
	trends, err := analytics.GetTimeSeriesTrends(db, analytics.QueryParams{TimeFrame: tf}, timeframe.GranularityDaily)
	require.NoError(t, err)

	require.Len(t, trends, 2)
	assert.Equal(t, yesterday.Format(timeframe.DateFormat), trends[0].Date)
	assert.Equal(t, 2, trends[0].Sessions)
	assert.Equal(t, today.Format(timeframe.DateFormat), trends[1].Date)
	assert.Equal(t, 1, trends[1].Sessions)
}

func TestDailyTrendsPreferPrecomputedRows(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	testsupport.CreateTestSession(t, db, yesterday.Add(10*time.Hour), "", sessions.DeviceDesktop)

	computed, err := dailystats.ComputeDailyAggregate(dbManager, logger, yesterday, false)
	require.NoError(t, err)
	require.True(t, computed)

	// A session added after precomputation is invisible to the aggregate
	// row, proving the precomputed source was chosen for that date.
	testsupport.CreateTestSession(t, db, yesterday.Add(11*time.Hour), "", sessions.DeviceMobile)

	trends, err := analytics.GetTimeSeriesTrends(db,
		analytics.QueryParams{TimeFrame: timeframe.LastDays(2)}, timeframe.GranularityDaily)
	require.NoError(t, err)

	require.Len(t, trends, 2)
	assert.Equal(t, 1, trends[0].Sessions)
}

func TestDailyTrendsMatchFunnelTotals(t *testing.T) {
	analytics.ResetFunnelCache()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for daysAgo := 0; daysAgo < 3; daysAgo++ {
		day := today.AddDate(0, 0, -daysAgo)
		for i := 0; i <= daysAgo; i++ {
			testsupport.CreateTestSession(t, db, day.Add(6*time.Hour), "", sessions.DeviceDesktop)
		}
		computed, err := dailystats.ComputeDailyAggregate(dbManager, logger, day, false)
		require.NoError(t, err)
		require.True(t, computed)
	}

	tf := timeframe.LastDays(3)
	params := analytics.QueryParams{TimeFrame: tf}

	trends, err := analytics.GetTimeSeriesTrends(db, params, timeframe.GranularityDaily)
	require.NoError(t, err)
	funnel, err := analytics.GetFunnel(db, params)
	require.NoError(t, err)

	total := 0
	for _, point := range trends {
		total += point.Sessions
	}
	assert.Equal(t, funnel.TotalSessions, total,
		"trend session totals must agree with the funnel when every date is precomputed")
}

func TestHourlyTrendsShape(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestSession(t, db, now.Add(-10*time.Minute), "", sessions.DeviceDesktop)

	trends, err := analytics.GetTimeSeriesTrends(db,
		analytics.QueryParams{TimeFrame: timeframe.LastDays(1)}, timeframe.GranularityHourly)
	require.NoError(t, err)

	assert.Len(t, trends, 25)

	total := 0
	for _, point := range trends {
		total += point.Sessions
	}
	assert.Equal(t, 1, total)
}

func TestGetTimeSeriesTrendsRejectsUnknownGranularity(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)

	_, err := analytics.GetTimeSeriesTrends(dbManager.GetConnection(),
		analytics.QueryParams{TimeFrame: timeframe.LastDays(1)}, "weekly")
	assert.Error(t, err)
}

func TestGetUserJourneyPatterns(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		s := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceDesktop)
		testsupport.CreateTestEvent(t, db, s, events.EventTypePageView, now)
		testsupport.CreateTestEvent(t, db, s, events.EventTypeSurveyStart, now.Add(time.Minute))
	}
	s := testsupport.CreateTestSession(t, db, now, "", sessions.DeviceMobile)
	testsupport.CreateTestEvent(t, db, s, events.EventTypePageView, now)

	patterns, err := analytics.GetUserJourneyPatterns(db, analytics.QueryParams{})
	require.NoError(t, err)

	assert.Equal(t, 2, patterns.TotalUniquePatterns)
	require.NotEmpty(t, patterns.TopPatterns)
	assert.Equal(t, "page_view -> survey_start", patterns.TopPatterns[0].Pattern)
	assert.Equal(t, 2, patterns.TopPatterns[0].Count)

	// An explicit limit truncates the list but not the unique count.
	limited, err := analytics.GetUserJourneyPatterns(db, analytics.QueryParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited.TopPatterns, 1)
	assert.Equal(t, 2, limited.TotalUniquePatterns)
}

func TestGenerateWeeklyReport(t *testing.T) {
	analytics.ResetFunnelCache()
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s := testsupport.CreateTestSession(t, db, now, "google", sessions.DeviceDesktop)
	testsupport.CreateTestEvent(t, db, s, events.EventTypePageView, now)
	testsupport.CreateTestConversion(t, db, s, "weekly@example.com", time.Time{})

	report, err := analytics.GenerateWeeklyReport(db)
	require.NoError(t, err)

	assert.Equal(t, 7, report.Period.Days)
	assert.Len(t, report.Trends, 7)
	require.NotNil(t, report.Funnel)
	assert.Equal(t, 1, report.Funnel.TotalSessions)
	require.NotNil(t, report.Traffic)
	require.NotNil(t, report.FunnelAnalysis)
	assert.False(t, report.GeneratedAt.IsZero())
}
