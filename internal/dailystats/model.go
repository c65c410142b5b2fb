// Package dailystats maintains the daily aggregate store: one precomputed
// row per calendar date, upserted by the aggregation job.
package dailystats

import (
	"math"
	"time"
)

// DateFormat is the canonical storage format for aggregate dates.
const DateFormat = "2006-01-02"

// DailyAggregate holds one date's raw funnel counts and the rates derived
// from them. Rates are always recomputed from the counts via CalculateRates
// before the row is saved, never hand-edited.
type DailyAggregate struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Date string `gorm:"uniqueIndex;size:10;not null"`

	// Funnel counts
	AdImpressions    int `gorm:"not null;default:0"`
	AdClicks         int `gorm:"not null;default:0"`
	PageViews        int `gorm:"not null;default:0"`
	UniqueVisitors   int `gorm:"not null;default:0"`
	SurveysStarted   int `gorm:"not null;default:0"`
	SurveysCompleted int `gorm:"not null;default:0"`
	Signups          int `gorm:"not null;default:0"`
	VerifiedSignups  int `gorm:"not null;default:0"`
	BounceSessions   int `gorm:"not null;default:0"`

	// Preference counts, legacy follow-up taxonomy
	PreferNothing      int `gorm:"not null;default:0"`
	PreferNotification int `gorm:"not null;default:0"`
	PreferUpdates      int `gorm:"not null;default:0"`

	// Preference counts, adoption intent taxonomy
	IntentNo      int `gorm:"not null;default:0"`
	IntentNotSure int `gorm:"not null;default:0"`
	IntentYes     int `gorm:"not null;default:0"`

	// Derived rates, percentages rounded to 2 decimals
	ClickThroughRate      float64 `gorm:"not null;default:0"`
	PageConversionRate    float64 `gorm:"not null;default:0"`
	OverallConversionRate float64 `gorm:"not null;default:0"`
	SurveyCompletionRate  float64 `gorm:"not null;default:0"`
	BounceRate            float64 `gorm:"not null;default:0"`

	// Average session time on site for the date, minutes rounded to 1 decimal
	AvgTimeOnSite float64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalculateRates recomputes every derived rate from the raw counts. Zero
// denominators leave the corresponding rate at 0.
func (d *DailyAggregate) CalculateRates() {
	d.ClickThroughRate = 0
	d.PageConversionRate = 0
	d.OverallConversionRate = 0
	d.SurveyCompletionRate = 0
	d.BounceRate = 0

	if d.AdImpressions > 0 {
		d.ClickThroughRate = Round2(float64(d.AdClicks) / float64(d.AdImpressions) * 100)
		if d.Signups > 0 {
			d.OverallConversionRate = Round2(float64(d.Signups) / float64(d.AdImpressions) * 100)
		}
	}
	if d.PageViews > 0 && d.Signups > 0 {
		d.PageConversionRate = Round2(float64(d.Signups) / float64(d.PageViews) * 100)
	}
	if d.SurveysStarted > 0 && d.SurveysCompleted > 0 {
		d.SurveyCompletionRate = Round2(float64(d.SurveysCompleted) / float64(d.SurveysStarted) * 100)
	}
	if d.UniqueVisitors > 0 {
		d.BounceRate = Round2(float64(d.BounceSessions) / float64(d.UniqueVisitors) * 100)
	}
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to 1 decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
