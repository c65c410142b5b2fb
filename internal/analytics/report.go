package analytics

import (
	"time"

	"gorm.io/gorm"

	"funneltrack/internal/timeframe"
)

// ReportPeriod describes the date range a report covers.
type ReportPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// WeeklyReport bundles the engine's calculators into one roll-up for the
// trailing week.
type WeeklyReport struct {
	Period          ReportPeriod       `json:"period"`
	Funnel          *Funnel            `json:"funnel"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
	Preferences     *Breakdown         `json:"preferences"`
	Traffic         *Attribution       `json:"traffic"`
	Trends          []TrendPoint       `json:"trends"`
	FunnelAnalysis  *DropOffReport     `json:"funnel_analysis"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// GenerateWeeklyReport produces the comprehensive report for the last 7
// days.
func GenerateWeeklyReport(db *gorm.DB) (*WeeklyReport, error) {
	tf := timeframe.LastDays(7)
	params := QueryParams{TimeFrame: tf}

	funnel, err := GetFunnel(db, params)
	if err != nil {
		return nil, err
	}
	rates := ratesFromFunnel(funnel)

	preferencesBreakdown, err := GetPreferenceBreakdown(db, params)
	if err != nil {
		return nil, err
	}
	traffic, err := GetTrafficAttribution(db, params)
	if err != nil {
		return nil, err
	}
	trends, err := GetTimeSeriesTrends(db, params, timeframe.GranularityDaily)
	if err != nil {
		return nil, err
	}

	return &WeeklyReport{
		Period: ReportPeriod{
			Start: tf.From.Format(timeframe.DateFormat),
			End:   tf.To.Format(timeframe.DateFormat),
			Days:  7,
		},
		Funnel:          funnel,
		ConversionRates: rates,
		Preferences:     preferencesBreakdown,
		Traffic:         traffic,
		Trends:          trends,
		FunnelAnalysis:  analyzeDropOff(rates),
		GeneratedAt:     time.Now().UTC(),
	}, nil
}
