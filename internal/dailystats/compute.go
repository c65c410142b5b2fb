package dailystats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"funneltrack/internal/events"
	"funneltrack/internal/preferences"
)

// BackfillResult reports how many dates a backfill run actually computed
// versus skipped (already present, or failed).
type BackfillResult struct {
	Computed int
	Skipped  int
}

// ComputeDailyAggregate recomputes the aggregate row for one calendar date.
// If a row already exists and force is false the call is an idempotent
// no-op returning false. Otherwise every raw count is recomputed from the
// event store, session registry, preference capture and conversion records
// inside a single transaction, so a crash mid-computation cannot leave a
// row with mismatched counts and rates.
func ComputeDailyAggregate(dbManager cartridge.DBManager, logger *slog.Logger, date time.Time, force bool) (bool, error) {
	db := dbManager.GetConnection()
	dateStr := date.UTC().Format(DateFormat)

	if !force {
		var existing DailyAggregate
		err := db.Where("date = ?", dateStr).First(&existing).Error
		if err == nil {
			logger.Debug("Daily aggregate already exists, skipping",
				slog.String("date", dateStr))
			return false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("failed to check existing aggregate for %s: %w", dateStr, err)
		}
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		aggregate, err := calculateDailyMetrics(tx, date)
		if err != nil {
			return err
		}
		aggregate.CalculateRates()
		return upsertAggregate(tx, aggregate)
	})
	if err != nil {
		return false, fmt.Errorf("failed to compute daily aggregate for %s: %w", dateStr, err)
	}

	logger.Info("Computed daily aggregate", slog.String("date", dateStr))
	return true, nil
}

// Backfill computes aggregates for every date from the earliest session
// through yesterday. A single day's failure is logged and skipped so one
// bad date cannot abort the whole run.
func Backfill(dbManager cartridge.DBManager, logger *slog.Logger, force bool) (*BackfillResult, error) {
	db := dbManager.GetConnection()

	var earliest struct{ FirstSeen *time.Time }
	err := db.Raw(`SELECT MIN(first_seen) AS first_seen FROM sessions`).Scan(&earliest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find earliest session: %w", err)
	}
	if earliest.FirstSeen == nil || earliest.FirstSeen.IsZero() {
		logger.Info("No sessions found, nothing to backfill")
		return &BackfillResult{}, nil
	}

	result := &BackfillResult{}
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

	for date := earliest.FirstSeen.UTC().Truncate(24 * time.Hour); !date.After(yesterday); date = date.AddDate(0, 0, 1) {
		computed, err := ComputeDailyAggregate(dbManager, logger, date, force)
		if err != nil {
			logger.Error("Backfill failed for date, continuing",
				slog.String("date", date.Format(DateFormat)),
				slog.Any("error", err))
			result.Skipped++
			continue
		}
		if computed {
			result.Computed++
		} else {
			result.Skipped++
		}
	}

	logger.Info("Backfill finished",
		slog.Int("computed", result.Computed),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// ForDate returns the aggregate row for a date, or nil when none exists.
func ForDate(db *gorm.DB, dateStr string) (*DailyAggregate, error) {
	var aggregate DailyAggregate
	err := db.Where("date = ?", dateStr).First(&aggregate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch daily aggregate: %w", err)
	}
	return &aggregate, nil
}

// calculateDailyMetrics recomputes every raw count for one date from the
// underlying fact tables.
func calculateDailyMetrics(tx *gorm.DB, date time.Time) (*DailyAggregate, error) {
	dayStart := time.Date(date.UTC().Year(), date.UTC().Month(), date.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	aggregate := &DailyAggregate{Date: dayStart.Format(DateFormat)}

	// Event counts by type
	var eventCounts []struct {
		EventType string
		Count     int
	}
	err := tx.Raw(`
		SELECT event_type, COUNT(*) AS count
		FROM events
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY event_type
	`, dayStart, dayEnd).Scan(&eventCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for _, row := range eventCounts {
		switch events.EventType(row.EventType) {
		case events.EventTypeAdImpression:
			aggregate.AdImpressions = row.Count
		case events.EventTypeAdClick:
			aggregate.AdClicks = row.Count
		case events.EventTypePageView:
			aggregate.PageViews = row.Count
		case events.EventTypeSurveyStart:
			aggregate.SurveysStarted = row.Count
		case events.EventTypeSurveyComplete:
			aggregate.SurveysCompleted = row.Count
		}
	}

	// Session metrics: visitors, bounces, average time on site
	var sessionMetrics struct {
		Visitors int
		Bounces  int
		AvgTime  float64
	}
	err = tx.Raw(`
		SELECT
			COUNT(*) AS visitors,
			COALESCE(SUM(CASE WHEN is_bounce THEN 1 ELSE 0 END), 0) AS bounces,
			COALESCE(AVG(time_on_site), 0) AS avg_time
		FROM sessions
		WHERE first_seen >= ? AND first_seen < ?
	`, dayStart, dayEnd).Scan(&sessionMetrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}
	aggregate.UniqueVisitors = sessionMetrics.Visitors
	aggregate.BounceSessions = sessionMetrics.Bounces
	aggregate.AvgTimeOnSite = Round1(sessionMetrics.AvgTime / 60)

	// Preference counts across both taxonomies
	var preferenceCounts []struct {
		Preference string
		Count      int
	}
	err = tx.Raw(`
		SELECT preference, COUNT(*) AS count
		FROM preference_responses
		WHERE created_at >= ? AND created_at < ?
		GROUP BY preference
	`, dayStart, dayEnd).Scan(&preferenceCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count preferences: %w", err)
	}
	for _, row := range preferenceCounts {
		switch row.Preference {
		case preferences.ValueNothing:
			aggregate.PreferNothing = row.Count
		case preferences.ValueNotification:
			aggregate.PreferNotification = row.Count
		case preferences.ValueUpdates:
			aggregate.PreferUpdates = row.Count
		case preferences.ValueNoWouldntUse:
			aggregate.IntentNo = row.Count
		case preferences.ValueNotSure:
			aggregate.IntentNotSure = row.Count
		case preferences.ValueYesWouldUse:
			aggregate.IntentYes = row.Count
		}
	}

	// Conversion counts
	var signupCounts struct {
		Total    int
		Verified int
	}
	err = tx.Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified
		FROM conversion_records
		WHERE created_at >= ? AND created_at < ?
	`, dayStart, dayEnd).Scan(&signupCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	aggregate.Signups = signupCounts.Total
	aggregate.VerifiedSignups = signupCounts.Verified

	return aggregate, nil
}

// upsertAggregate writes the row with last-writer-wins semantics on the
// unique date index. Concurrent recomputations for the same date are
// deterministic given the same raw facts, so the race is benign.
func upsertAggregate(tx *gorm.DB, a *DailyAggregate) error {
	query := `
		INSERT INTO daily_aggregates (
			date, ad_impressions, ad_clicks, page_views, unique_visitors,
			surveys_started, surveys_completed, signups, verified_signups, bounce_sessions,
			prefer_nothing, prefer_notification, prefer_updates,
			intent_no, intent_not_sure, intent_yes,
			click_through_rate, page_conversion_rate, overall_conversion_rate,
			survey_completion_rate, bounce_rate, avg_time_on_site,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			ad_impressions = excluded.ad_impressions,
			ad_clicks = excluded.ad_clicks,
			page_views = excluded.page_views,
			unique_visitors = excluded.unique_visitors,
			surveys_started = excluded.surveys_started,
			surveys_completed = excluded.surveys_completed,
			signups = excluded.signups,
			verified_signups = excluded.verified_signups,
			bounce_sessions = excluded.bounce_sessions,
			prefer_nothing = excluded.prefer_nothing,
			prefer_notification = excluded.prefer_notification,
			prefer_updates = excluded.prefer_updates,
			intent_no = excluded.intent_no,
			intent_not_sure = excluded.intent_not_sure,
			intent_yes = excluded.intent_yes,
			click_through_rate = excluded.click_through_rate,
			page_conversion_rate = excluded.page_conversion_rate,
			overall_conversion_rate = excluded.overall_conversion_rate,
			survey_completion_rate = excluded.survey_completion_rate,
			bounce_rate = excluded.bounce_rate,
			avg_time_on_site = excluded.avg_time_on_site,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	err := tx.Exec(query,
		a.Date, a.AdImpressions, a.AdClicks, a.PageViews, a.UniqueVisitors,
		a.SurveysStarted, a.SurveysCompleted, a.Signups, a.VerifiedSignups, a.BounceSessions,
		a.PreferNothing, a.PreferNotification, a.PreferUpdates,
		a.IntentNo, a.IntentNotSure, a.IntentYes,
		a.ClickThroughRate, a.PageConversionRate, a.OverallConversionRate,
		a.SurveyCompletionRate, a.BounceRate, a.AvgTimeOnSite,
		now, now,
	).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily aggregate: %w", err)
	}
	return nil
}
