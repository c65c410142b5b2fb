package analytics

import (
	"gorm.io/gorm"

	"funneltrack/internal/dailystats"
)

// Conversion rate keys. A key is present in the result only when its
// denominator is non-zero.
const (
	RatePageToSurvey     = "page_to_survey"
	RateSurveyCompletion = "survey_completion"
	RateSurveyToForm     = "survey_to_form"
	RateSignupSuccess    = "signup_success"
	RateOverall          = "overall"
)

// GetConversionRates derives the ratios between adjacent funnel steps.
// Ratios whose denominator is zero are omitted from the map entirely: no
// error, no NaN.
func GetConversionRates(db *gorm.DB, params QueryParams) (map[string]float64, error) {
	funnel, err := GetFunnel(db, params)
	if err != nil {
		return nil, err
	}
	return ratesFromFunnel(funnel), nil
}

// ratesFromFunnel is the pure rate derivation, shared with the drop-off
// analyzer so both report identical numbers for identical counts.
func ratesFromFunnel(funnel *Funnel) map[string]float64 {
	rates := make(map[string]float64)

	if funnel.PageViews > 0 {
		rates[RatePageToSurvey] = dailystats.Round2(float64(funnel.SurveysStarted) / float64(funnel.PageViews) * 100)
	}
	if funnel.SurveysStarted > 0 {
		rates[RateSurveyCompletion] = dailystats.Round2(float64(funnel.SurveysCompleted) / float64(funnel.SurveysStarted) * 100)
	}
	if funnel.SurveysCompleted > 0 {
		rates[RateSurveyToForm] = dailystats.Round2(float64(funnel.FormsStarted) / float64(funnel.SurveysCompleted) * 100)
	}
	if funnel.SignupAttempts > 0 {
		rates[RateSignupSuccess] = dailystats.Round2(float64(funnel.SuccessfulSignups) / float64(funnel.SignupAttempts) * 100)
	}
	if funnel.PageViews > 0 {
		rates[RateOverall] = dailystats.Round2(float64(funnel.Conversions) / float64(funnel.PageViews) * 100)
	}

	return rates
}
