package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"funneltrack/internal/dailystats"
)

// DirectTrafficSource is the reported source for sessions without UTM
// attribution.
const DirectTrafficSource = "Direct"

// SourceStats holds one traffic source's session and conversion performance.
type SourceStats struct {
	Source         string  `json:"source"`
	Sessions       int     `json:"sessions"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	AvgTimeMinutes float64 `json:"avg_time_minutes"`
	BounceRate     float64 `json:"bounce_rate"`
}

// Attribution is the per-source traffic report, ordered by session count
// descending.
type Attribution struct {
	Sources             []SourceStats `json:"sources"`
	TotalSources        int           `json:"total_sources"`
	TopConvertingSource *SourceStats  `json:"top_converting_source"`
}

// GetTrafficAttribution groups sessions by acquisition source and computes
// per-source conversion performance. The top-converting source is the one
// with the highest conversion rate; ties break on higher session count,
// then lexically smaller source name, so the result is deterministic
// regardless of scan order.
func GetTrafficAttribution(db *gorm.DB, params QueryParams) (*Attribution, error) {
	tf := params.TimeFrame

	var rows []struct {
		UTMSource   string
		Sessions    int
		Conversions int
		AvgTime     float64
		Bounces     int
	}
	err := db.Raw(`
		SELECT
			s.utm_source,
			COUNT(*) AS sessions,
			COUNT(c.id) AS conversions,
			COALESCE(AVG(s.time_on_site), 0) AS avg_time,
			COALESCE(SUM(CASE WHEN s.is_bounce THEN 1 ELSE 0 END), 0) AS bounces
		FROM sessions s
		LEFT JOIN conversion_records c ON c.session_id = s.session_id
		WHERE s.first_seen >= ? AND s.first_seen <= ?
		GROUP BY s.utm_source
		ORDER BY sessions DESC, s.utm_source ASC
	`, tf.From, tf.To).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate traffic sources: %w", err)
	}

	attribution := &Attribution{Sources: make([]SourceStats, 0, len(rows))}
	for _, row := range rows {
		source := row.UTMSource
		if source == "" {
			source = DirectTrafficSource
		}
		stats := SourceStats{
			Source:         source,
			Sessions:       row.Sessions,
			Conversions:    row.Conversions,
			AvgTimeMinutes: dailystats.Round1(row.AvgTime / 60),
		}
		if row.Sessions > 0 {
			stats.ConversionRate = dailystats.Round2(float64(row.Conversions) / float64(row.Sessions) * 100)
			stats.BounceRate = dailystats.Round1(float64(row.Bounces) / float64(row.Sessions) * 100)
		}
		attribution.Sources = append(attribution.Sources, stats)
	}
	attribution.TotalSources = len(attribution.Sources)
	attribution.TopConvertingSource = topConvertingSource(attribution.Sources)

	return attribution, nil
}

// topConvertingSource applies the documented tie-break: maximum conversion
// rate, then maximum session count, then lexically smallest source name.
func topConvertingSource(sources []SourceStats) *SourceStats {
	var top *SourceStats
	for i := range sources {
		candidate := &sources[i]
		if top == nil {
			top = candidate
			continue
		}
		switch {
		case candidate.ConversionRate > top.ConversionRate:
			top = candidate
		case candidate.ConversionRate == top.ConversionRate && candidate.Sessions > top.Sessions:
			top = candidate
		case candidate.ConversionRate == top.ConversionRate && candidate.Sessions == top.Sessions && candidate.Source < top.Source:
			top = candidate
		}
	}
	return top
}
