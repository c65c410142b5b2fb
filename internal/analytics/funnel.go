package analytics

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"

	"funneltrack/internal/events"
	"funneltrack/internal/timeframe"
)

// Funnel holds the step-by-step counts through the visitor journey for one
// date range.
type Funnel struct {
	TotalSessions     int `json:"total_sessions"`
	PageViews         int `json:"page_views"`
	SurveysStarted    int `json:"surveys_started"`
	SurveysCompleted  int `json:"surveys_completed"`
	FormsStarted      int `json:"forms_started"`
	SignupAttempts    int `json:"signup_attempts"`
	SuccessfulSignups int `json:"successful_signups"`
	Conversions       int `json:"conversions"`
}

var (
	funnelCache     *cache.Cache[string, *Funnel]
	funnelCacheOnce sync.Once
)

// InitFunnelCache wires the short-TTL result cache in front of the funnel
// query. Staleness within the TTL is acceptable; the cache is a performance
// optimization, not a correctness requirement, so writes never invalidate it.
func InitFunnelCache(db *gorm.DB, logger *slog.Logger, ttl time.Duration) {
	funnelCacheOnce.Do(func() {
		fetchFunc := func(key string) (*Funnel, error) {
			tf, err := timeFrameFromCacheKey(key)
			if err != nil {
				return nil, err
			}
			return computeFunnel(db, tf)
		}
		funnelCache = cache.NewCache[string, *Funnel](logger, ttl, fetchFunc)
	})
}

// ResetFunnelCache drops the cache instance; intended for tests.
func ResetFunnelCache() {
	funnelCacheOnce = sync.Once{}
	funnelCache = nil
}

// GetFunnel returns the conversion funnel for the range, served from the
// result cache when one is wired.
func GetFunnel(db *gorm.DB, params QueryParams) (*Funnel, error) {
	if funnelCache == nil {
		return computeFunnel(db, params.TimeFrame)
	}
	return funnelCache.Get(funnelCacheKey(params.TimeFrame))
}

func funnelCacheKey(tf *timeframe.TimeFrame) string {
	return fmt.Sprintf("funnel_%s", tf.Key())
}

// timeFrameFromCacheKey reverses funnelCacheKey so the cache fetch function
// can recompute a missing entry from the key alone.
func timeFrameFromCacheKey(key string) (*timeframe.TimeFrame, error) {
	trimmed := strings.TrimPrefix(key, "funnel_")
	parts := strings.Split(trimmed, "_")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed funnel cache key: %q", key)
	}
	from, err := time.Parse(timeframe.DateFormat, parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed funnel cache key %q: %w", key, err)
	}
	to, err := time.Parse(timeframe.DateFormat, parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed funnel cache key %q: %w", key, err)
	}
	return timeframe.New(from, to)
}

// computeFunnel runs the uncached funnel aggregation.
func computeFunnel(db *gorm.DB, tf *timeframe.TimeFrame) (*Funnel, error) {
	funnel := &Funnel{}

	var sessionCount int64
	err := db.Raw(`
		SELECT COUNT(*) FROM sessions WHERE first_seen >= ? AND first_seen <= ?
	`, tf.From, tf.To).Scan(&sessionCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	funnel.TotalSessions = int(sessionCount)

	var eventCounts []struct {
		EventType string
		Count     int
	}
	err = db.Raw(`
		SELECT event_type, COUNT(*) AS count
		FROM events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY event_type
	`, tf.From, tf.To).Scan(&eventCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for _, row := range eventCounts {
		switch events.EventType(row.EventType) {
		case events.EventTypePageView:
			funnel.PageViews = row.Count
		case events.EventTypeSurveyStart:
			funnel.SurveysStarted = row.Count
		case events.EventTypeSurveyComplete:
			funnel.SurveysCompleted = row.Count
		case events.EventTypeFormStart:
			funnel.FormsStarted = row.Count
		case events.EventTypeSignupAttempt:
			funnel.SignupAttempts = row.Count
		case events.EventTypeSignupSuccess:
			funnel.SuccessfulSignups = row.Count
		}
	}

	var conversionCount int64
	err = db.Raw(`
		SELECT COUNT(DISTINCT session_id)
		FROM conversion_records
		WHERE session_id IS NOT NULL AND created_at >= ? AND created_at <= ?
	`, tf.From, tf.To).Scan(&conversionCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	funnel.Conversions = int(conversionCount)

	return funnel, nil
}
