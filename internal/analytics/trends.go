package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"funneltrack/internal/dailystats"
	"funneltrack/internal/timeframe"
)

// TrendPoint is one time series bucket. Both trend sources produce this
// exact shape, so dashboard consumers are agnostic to which path served
// the data.
type TrendPoint struct {
	Date           string  `json:"date"`
	Sessions       int     `json:"sessions"`
	Signups        int     `json:"signups"`
	ConversionRate float64 `json:"conversion_rate"`
}

// TrendSource produces the trend point for one calendar date, or reports
// that it cannot serve it so the caller can fall through to the next
// source.
type TrendSource interface {
	TrendFor(date time.Time) (*TrendPoint, bool, error)
}

// PrecomputedTrendSource serves trend points from the daily aggregate
// store. Dates without an aggregate row are not served.
type PrecomputedTrendSource struct {
	DB *gorm.DB
}

// TrendFor returns the aggregate-backed point for a date when a row exists.
func (s *PrecomputedTrendSource) TrendFor(date time.Time) (*TrendPoint, bool, error) {
	aggregate, err := dailystats.ForDate(s.DB, date.UTC().Format(dailystats.DateFormat))
	if err != nil {
		return nil, false, err
	}
	if aggregate == nil {
		return nil, false, nil
	}
	return &TrendPoint{
		Date:           aggregate.Date,
		Sessions:       aggregate.UniqueVisitors,
		Signups:        aggregate.Signups,
		ConversionRate: aggregate.PageConversionRate,
	}, true, nil
}

// RawFactTrendSource computes trend points directly from the session
// registry and conversion records. It can serve any date, at the cost of
// two scans per bucket.
type RawFactTrendSource struct {
	DB *gorm.DB
}

// TrendFor computes the point for a date on the fly.
func (s *RawFactTrendSource) TrendFor(date time.Time) (*TrendPoint, bool, error) {
	tf := timeframe.ForDate(date)

	var sessions int64
	err := s.DB.Raw(`
		SELECT COUNT(*) FROM sessions WHERE first_seen >= ? AND first_seen <= ?
	`, tf.From, tf.To).Scan(&sessions).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to count sessions for %s: %w", tf.Key(), err)
	}

	var signups int64
	err = s.DB.Raw(`
		SELECT COUNT(*) FROM conversion_records WHERE created_at >= ? AND created_at <= ?
	`, tf.From, tf.To).Scan(&signups).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to count signups for %s: %w", tf.Key(), err)
	}

	point := &TrendPoint{
		Date:     tf.From.Format(timeframe.DateFormat),
		Sessions: int(sessions),
		Signups:  int(signups),
	}
	if sessions > 0 {
		point.ConversionRate = dailystats.Round2(float64(signups) / float64(sessions) * 100)
	}
	return point, true, nil
}

// GetTimeSeriesTrends returns one point per bucket over the range. Daily
// granularity prefers the precomputed source and falls back to raw facts
// per bucket; hourly granularity is always computed from raw facts since
// no hourly precomputation exists.
func GetTimeSeriesTrends(db *gorm.DB, params QueryParams, granularity timeframe.Granularity) ([]TrendPoint, error) {
	switch granularity {
	case timeframe.GranularityDaily:
		return dailyTrends(db, params.TimeFrame)
	case timeframe.GranularityHourly:
		return hourlyTrends(db)
	default:
		return nil, fmt.Errorf("granularity must be %q or %q", timeframe.GranularityDaily, timeframe.GranularityHourly)
	}
}

// dailyTrends selects the trend source per bucket: precomputed when an
// aggregate row exists, raw facts otherwise.
func dailyTrends(db *gorm.DB, tf *timeframe.TimeFrame) ([]TrendPoint, error) {
	precomputed := &PrecomputedTrendSource{DB: db}
	raw := &RawFactTrendSource{DB: db}

	trends := make([]TrendPoint, 0, tf.DayCount())
	for _, date := range tf.Days() {
		point, ok, err := precomputed.TrendFor(date)
		if err != nil {
			return nil, err
		}
		if !ok {
			point, _, err = raw.TrendFor(date)
			if err != nil {
				return nil, err
			}
		}
		trends = append(trends, *point)
	}
	return trends, nil
}

// hourlyTrends covers the trailing 24 hours in hour buckets.
func hourlyTrends(db *gorm.DB) ([]TrendPoint, error) {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour).Truncate(time.Hour)

	var trends []TrendPoint
	for hour := start; !hour.After(end); hour = hour.Add(time.Hour) {
		next := hour.Add(time.Hour)

		var sessions int64
		err := db.Raw(`
			SELECT COUNT(*) FROM sessions WHERE first_seen >= ? AND first_seen < ?
		`, hour, next).Scan(&sessions).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count hourly sessions: %w", err)
		}

		var signups int64
		err = db.Raw(`
			SELECT COUNT(*) FROM conversion_records WHERE created_at >= ? AND created_at < ?
		`, hour, next).Scan(&signups).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count hourly signups: %w", err)
		}

		point := TrendPoint{
			Date:     hour.Format("2006-01-02 15:00"),
			Sessions: int(sessions),
			Signups:  int(signups),
		}
		if sessions > 0 {
			point.ConversionRate = dailystats.Round2(float64(signups) / float64(sessions) * 100)
		}
		trends = append(trends, point)
	}
	return trends, nil
}
