// Package timeframe provides the date ranges analytics queries operate on.
// Ranges are inclusive by calendar date and always evaluated in UTC.
package timeframe

import (
	"fmt"
	"strconv"
	"time"
)

// Granularity selects the bucket size for time series queries.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityHourly Granularity = "hourly"
)

// DateFormat is the canonical date string format used in keys and results.
const DateFormat = "2006-01-02"

// TimeFrame represents an inclusive [From, To] date range. From and To are
// normalized to day boundaries: From is the start of its day, To the last
// instant before the following day.
type TimeFrame struct {
	From time.Time
	To   time.Time
}

// New builds a TimeFrame from two instants, normalizing to day boundaries.
func New(from, to time.Time) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("from must not be after to")
	}
	return &TimeFrame{
		From: startOfDay(from),
		To:   endOfDay(to),
	}, nil
}

// LastDays returns the range covering the past n calendar days through
// today, matching a dashboard "last N days" selector.
func LastDays(n int) *TimeFrame {
	if n < 1 {
		n = 1
	}
	now := time.Now().UTC()
	return &TimeFrame{
		From: startOfDay(now.AddDate(0, 0, -(n - 1))),
		To:   endOfDay(now),
	}
}

// ForDate returns the single-day range for one calendar date.
func ForDate(date time.Time) *TimeFrame {
	return &TimeFrame{
		From: startOfDay(date),
		To:   endOfDay(date),
	}
}

// ParseDays interprets a dashboard "days" query parameter, defaulting to 30
// and clamping to [1, 365].
func ParseDays(raw string) int {
	days := 30
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	return days
}

// Days returns the calendar dates covered by the range in chronological
// order, one per day.
func (tf *TimeFrame) Days() []time.Time {
	var days []time.Time
	for d := tf.From; !d.After(tf.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DayCount returns the number of calendar dates in the range.
func (tf *TimeFrame) DayCount() int {
	return int(tf.To.Sub(tf.From).Hours()/24) + 1
}

// Key returns a deterministic identifier for the exact date range, used as
// a cache key component.
func (tf *TimeFrame) Key() string {
	return fmt.Sprintf("%s_%s", tf.From.Format(DateFormat), tf.To.Format(DateFormat))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
