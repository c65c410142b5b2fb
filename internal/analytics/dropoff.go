package analytics

import (
	"gorm.io/gorm"

	"funneltrack/internal/dailystats"
)

// Overall funnel health labels.
const (
	HealthGood           = "good"
	HealthNeedsAttention = "needs_attention"
)

// stepBenchmarks are the expected minimum step rates. A step rate below its
// benchmark is flagged as an issue.
var stepBenchmarks = map[string]float64{
	RatePageToSurvey:     25.0,
	RateSurveyCompletion: 70.0,
	RateSurveyToForm:     60.0,
	RateSignupSuccess:    90.0,
}

// stepRecommendations maps each benchmarked step to its fixed
// recommendation string.
var stepRecommendations = map[string]string{
	RatePageToSurvey:     "Consider making the survey more prominent or compelling",
	RateSurveyCompletion: "Simplify survey options or reduce cognitive load",
	RateSurveyToForm:     "Improve value proposition for early access signup",
	RateSignupSuccess:    "Fix form validation or technical issues",
}

// benchmarkedSteps fixes the evaluation order so issue and recommendation
// lists are deterministic.
var benchmarkedSteps = []string{
	RatePageToSurvey,
	RateSurveyCompletion,
	RateSurveyToForm,
	RateSignupSuccess,
}

// DropOffIssue flags one funnel step performing below its benchmark.
type DropOffIssue struct {
	Step       string  `json:"step"`
	ActualRate float64 `json:"actual_rate"`
	Benchmark  float64 `json:"benchmark"`
	Gap        float64 `json:"gap"`
}

// DropOffReport summarizes where the funnel is leaking.
type DropOffReport struct {
	Issues          []DropOffIssue `json:"issues"`
	Recommendations []string       `json:"recommendations"`
	OverallHealth   string         `json:"overall_health"`
}

// IdentifyDropOffPoints compares each step rate against its benchmark.
// Steps whose rate is absent (zero denominator) are not evaluated. Overall
// health is good when at most one issue is found.
func IdentifyDropOffPoints(db *gorm.DB, params QueryParams) (*DropOffReport, error) {
	rates, err := GetConversionRates(db, params)
	if err != nil {
		return nil, err
	}
	return analyzeDropOff(rates), nil
}

// analyzeDropOff is the pure benchmark comparison, evaluated in fixed step
// order.
func analyzeDropOff(rates map[string]float64) *DropOffReport {
	report := &DropOffReport{
		Issues:          []DropOffIssue{},
		Recommendations: []string{},
	}

	for _, step := range benchmarkedSteps {
		actual, ok := rates[step]
		if !ok {
			continue
		}
		benchmark := stepBenchmarks[step]
		if actual < benchmark {
			report.Issues = append(report.Issues, DropOffIssue{
				Step:       step,
				ActualRate: actual,
				Benchmark:  benchmark,
				Gap:        dailystats.Round2(benchmark - actual),
			})
			report.Recommendations = append(report.Recommendations, stepRecommendations[step])
		}
	}

	if len(report.Issues) <= 1 {
		report.OverallHealth = HealthGood
	} else {
		report.OverallHealth = HealthNeedsAttention
	}
	return report
}
