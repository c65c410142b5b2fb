package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"funneltrack/internal/dailystats"
	"funneltrack/internal/preferences"
)

// TaxonomyBreakdown segments the responses of a single answer taxonomy.
type TaxonomyBreakdown struct {
	Taxonomy        preferences.Taxonomy `json:"taxonomy"`
	TotalResponses  int                  `json:"total_responses"`
	Counts          map[string]int       `json:"counts"`
	Percentages     map[string]float64   `json:"percentages"`
	EngagementScore float64              `json:"engagement_score"`
}

// Breakdown is the full preference segmentation for a date range: combined
// counts and percentages across both taxonomies, per-taxonomy views, a
// weighted engagement score, and the ordered insight strings produced by
// the rule engine.
type Breakdown struct {
	TotalResponses  int                                         `json:"total_responses"`
	Counts          map[string]int                              `json:"counts"`
	Percentages     map[string]float64                          `json:"percentages"`
	EngagementScore float64                                     `json:"engagement_score"`
	ByTaxonomy      map[preferences.Taxonomy]*TaxonomyBreakdown `json:"by_taxonomy"`
	Insights        []string                                    `json:"insights"`
}

// GetPreferenceBreakdown segments survey responses in the range by answer
// value and taxonomy. Stored values outside both taxonomies are ignored.
func GetPreferenceBreakdown(db *gorm.DB, params QueryParams) (*Breakdown, error) {
	tf := params.TimeFrame

	var rows []struct {
		Preference string
		Count      int
	}
	err := db.Raw(`
		SELECT preference, COUNT(*) AS count
		FROM preference_responses
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY preference
	`, tf.From, tf.To).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count preference responses: %w", err)
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if preferences.IsValidValue(row.Preference) {
			counts[row.Preference] = row.Count
		}
	}

	return BuildBreakdown(counts), nil
}

// BuildBreakdown derives the full segmentation from raw value counts. It is
// pure: identical counts always produce identical output, including insight
// order.
func BuildBreakdown(counts map[string]int) *Breakdown {
	breakdown := &Breakdown{
		Counts:      counts,
		Percentages: make(map[string]float64),
		ByTaxonomy:  make(map[preferences.Taxonomy]*TaxonomyBreakdown),
	}

	total := 0
	for _, count := range counts {
		total += count
	}
	breakdown.TotalResponses = total
	if total == 0 {
		breakdown.Insights = []string{}
		return breakdown
	}

	weightedSum := 0
	for value, count := range counts {
		breakdown.Percentages[value] = dailystats.Round1(float64(count) / float64(total) * 100)
		classification, err := preferences.Classify(value)
		if err != nil {
			continue
		}
		weightedSum += count * classification.Weight

		tb := breakdown.ByTaxonomy[classification.Taxonomy]
		if tb == nil {
			tb = &TaxonomyBreakdown{
				Taxonomy:    classification.Taxonomy,
				Counts:      make(map[string]int),
				Percentages: make(map[string]float64),
			}
			breakdown.ByTaxonomy[classification.Taxonomy] = tb
		}
		tb.Counts[value] = count
		tb.TotalResponses += count
	}
	breakdown.EngagementScore = dailystats.Round2(float64(weightedSum) / float64(total))

	for _, tb := range breakdown.ByTaxonomy {
		taxonomyWeighted := 0
		for value, count := range tb.Counts {
			tb.Percentages[value] = dailystats.Round1(float64(count) / float64(tb.TotalResponses) * 100)
			classification, err := preferences.Classify(value)
			if err != nil {
				continue
			}
			taxonomyWeighted += count * classification.Weight
		}
		tb.EngagementScore = dailystats.Round2(float64(taxonomyWeighted) / float64(tb.TotalResponses))
	}

	breakdown.Insights = generateInsights(breakdown)
	return breakdown
}

// generateInsights runs the deterministic rule engine over fixed percentage
// and score thresholds. Rules fire in a fixed order so the output is
// reproducible for fixed input counts.
func generateInsights(breakdown *Breakdown) []string {
	insights := []string{}
	pct := breakdown.Percentages

	// Follow-up taxonomy rules
	if pct[preferences.ValueUpdates] > 50 {
		insights = append(insights, "Users strongly prefer active engagement with progress updates")
	} else if pct[preferences.ValueUpdates] > 30 {
		insights = append(insights, "Significant interest in receiving progress updates")
	}
	if pct[preferences.ValueNotification] > 40 {
		insights = append(insights, "Users prefer simple resolution notifications over detailed updates")
	}
	if pct[preferences.ValueNothing] > 60 {
		insights = append(insights, "High percentage of users prefer no follow-up - consider value proposition")
	}

	// Adoption intent taxonomy rules
	if pct[preferences.ValueYesWouldUse] > 50 {
		insights = append(insights, "Strong app usage intent - most users say they would use it")
	} else if pct[preferences.ValueYesWouldUse] > 30 {
		insights = append(insights, "Significant app usage intent among respondents")
	}
	if pct[preferences.ValueNoWouldntUse] > 60 {
		insights = append(insights, "High percentage would not use the app - consider value proposition")
	}

	// Overall engagement level
	if breakdown.EngagementScore > 1.5 {
		insights = append(insights, "High overall engagement level - users want to stay involved")
	} else if breakdown.EngagementScore < 0.5 {
		insights = append(insights, "Low engagement level - users prefer fire-and-forget reporting")
	}

	// Cross-taxonomy comparison, only when both answer sets have responses
	followup := breakdown.ByTaxonomy[preferences.TaxonomyEngagementFollowup]
	intent := breakdown.ByTaxonomy[preferences.TaxonomyAdoptionIntent]
	if followup != nil && intent != nil {
		followupPct := dailystats.Round1(float64(followup.TotalResponses) / float64(breakdown.TotalResponses) * 100)
		intentPct := dailystats.Round1(float64(intent.TotalResponses) / float64(breakdown.TotalResponses) * 100)
		insights = append(insights, fmt.Sprintf(
			"Responses split: %.1f%% follow-up question, %.1f%% app usage question",
			followupPct, intentPct))

		switch {
		case intent.EngagementScore > followup.EngagementScore:
			insights = append(insights, "App usage intent runs higher than follow-up engagement")
		case followup.EngagementScore > intent.EngagementScore:
			insights = append(insights, "Follow-up engagement runs higher than app usage intent")
		}
	}

	return insights
}
