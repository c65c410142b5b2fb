package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDropOffFlagsStepsBelowBenchmark(t *testing.T) {
	rates := map[string]float64{
		RatePageToSurvey:     10.0, // benchmark 25
		RateSurveyCompletion: 75.0, // benchmark 70, fine
		RateSurveyToForm:     40.0, // benchmark 60
		RateSignupSuccess:    95.0, // benchmark 90, fine
	}

	report := analyzeDropOff(rates)

	require.Equal(t, 2, len(report.Issues))
	assert.Equal(t, RatePageToSurvey, report.Issues[0].Step)
	assert.Equal(t, 15.0, report.Issues[0].Gap)
	assert.Equal(t, RateSurveyToForm, report.Issues[1].Step)
	assert.Equal(t, 20.0, report.Issues[1].Gap)

	require.Equal(t, 2, len(report.Recommendations))
	assert.Equal(t, "Consider making the survey more prominent or compelling", report.Recommendations[0])
	assert.Equal(t, "Improve value proposition for early access signup", report.Recommendations[1])

	assert.Equal(t, HealthNeedsAttention, report.OverallHealth)
}

func TestAnalyzeDropOffHealth(t *testing.T) {
	tests := []struct {
		name   string
		rates  map[string]float64
		health string
	}{
		{
			name:   "no issues is good",
			rates:  map[string]float64{RatePageToSurvey: 30, RateSurveyCompletion: 80, RateSurveyToForm: 70, RateSignupSuccess: 95},
			health: HealthGood,
		},
		{
			name:   "exactly one issue is still good",
			rates:  map[string]float64{RatePageToSurvey: 10, RateSurveyCompletion: 80, RateSurveyToForm: 70, RateSignupSuccess: 95},
			health: HealthGood,
		},
		{
			name:   "two issues need attention",
			rates:  map[string]float64{RatePageToSurvey: 10, RateSurveyCompletion: 50, RateSurveyToForm: 70, RateSignupSuccess: 95},
			health: HealthNeedsAttention,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.health, analyzeDropOff(tc.rates).OverallHealth)
		})
	}
}

func TestAnalyzeDropOffSkipsAbsentRates(t *testing.T) {
	// Steps with zero denominators are absent from the rate map and must
	// not be treated as failing.
	report := analyzeDropOff(map[string]float64{})
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Recommendations)
	assert.Equal(t, HealthGood, report.OverallHealth)
}

func TestAnalyzeDropOffBoundaryRate(t *testing.T) {
	// A rate exactly at the benchmark is not an issue.
	report := analyzeDropOff(map[string]float64{RatePageToSurvey: 25.0})
	assert.Empty(t, report.Issues)
}
