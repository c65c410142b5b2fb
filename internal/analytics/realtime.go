package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RealTimeStats is the live dashboard snapshot. It is always computed
// fresh, never cached.
type RealTimeStats struct {
	SessionsToday    int        `json:"sessions_today"`
	SignupsToday     int        `json:"signups_today"`
	SessionsLastHour int        `json:"sessions_last_hour"`
	ActiveSessions   int        `json:"active_sessions"`
	TotalSignups     int        `json:"total_signups"`
	LastSignupAt     *time.Time `json:"last_signup_at"`
	Timestamp        time.Time  `json:"timestamp"`
}

// GetRealTimeStats returns live counters: today's sessions and signups,
// sessions in the trailing hour, and sessions active within the window.
func GetRealTimeStats(db *gorm.DB, activeWindow time.Duration) (*RealTimeStats, error) {
	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-time.Hour)

	stats := &RealTimeStats{Timestamp: now}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.SessionsToday, `SELECT COUNT(*) FROM sessions WHERE first_seen >= ?`, []interface{}{todayStart}},
		{&stats.SignupsToday, `SELECT COUNT(*) FROM conversion_records WHERE created_at >= ?`, []interface{}{todayStart}},
		{&stats.SessionsLastHour, `SELECT COUNT(*) FROM sessions WHERE first_seen >= ?`, []interface{}{hourAgo}},
		{&stats.ActiveSessions, `SELECT COUNT(*) FROM sessions WHERE last_activity >= ?`, []interface{}{now.Add(-activeWindow)}},
		{&stats.TotalSignups, `SELECT COUNT(*) FROM conversion_records`, nil},
	}
	for _, c := range counts {
		var count int64
		if err := db.Raw(c.query, c.args...).Scan(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to compute realtime stats: %w", err)
		}
		*c.dest = int(count)
	}

	var lastSignup struct{ CreatedAt *time.Time }
	err := db.Raw(`SELECT MAX(created_at) AS created_at FROM conversion_records`).Scan(&lastSignup).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find last signup: %w", err)
	}
	stats.LastSignupAt = lastSignup.CreatedAt

	return stats, nil
}
