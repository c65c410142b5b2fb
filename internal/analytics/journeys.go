package analytics

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// journeySampleLimit bounds how many sessions feed pattern analysis.
const journeySampleLimit = 1000

// JourneyPattern is one observed event sequence and how often it occurred.
type JourneyPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// JourneyPatterns summarizes the most common visitor event sequences.
type JourneyPatterns struct {
	TopPatterns         []JourneyPattern `json:"top_patterns"`
	TotalUniquePatterns int              `json:"total_unique_patterns"`
}

// GetUserJourneyPatterns groups sessions by their ordered event type
// sequence and returns the most frequent patterns, up to params.Limit (ten
// by default). Analysis is capped to a bounded session sample to keep the
// query cheap.
func GetUserJourneyPatterns(db *gorm.DB, params QueryParams) (*JourneyPatterns, error) {
	var rows []struct {
		SessionID string
		EventType string
	}
	err := db.Raw(`
		SELECT session_id, event_type
		FROM events
		WHERE session_id IN (
			SELECT DISTINCT session_id FROM events LIMIT ?
		)
		ORDER BY session_id, timestamp ASC
	`, journeySampleLimit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journey events: %w", err)
	}

	sequences := make(map[string][]string)
	for _, row := range rows {
		sequences[row.SessionID] = append(sequences[row.SessionID], row.EventType)
	}

	patternCounts := make(map[string]int)
	for _, sequence := range sequences {
		patternCounts[strings.Join(sequence, " -> ")]++
	}

	patterns := make([]JourneyPattern, 0, len(patternCounts))
	for pattern, count := range patternCounts {
		patterns = append(patterns, JourneyPattern{Pattern: pattern, Count: count})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})

	top := patterns
	if limit := params.LimitOrDefault(); len(top) > limit {
		top = top[:limit]
	}

	return &JourneyPatterns{
		TopPatterns:         top,
		TotalUniquePatterns: len(patternCounts),
	}, nil
}
