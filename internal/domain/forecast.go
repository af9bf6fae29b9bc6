package domain

import "time"

// Intensity is the categorical rainfall severity derived from the hourly rate.
type Intensity string

const (
	IntensityNone       Intensity = "None"
	IntensityLight      Intensity = "Light"
	IntensityModerate   Intensity = "Moderate"
	IntensityHeavy      Intensity = "Heavy"
	IntensityIntense    Intensity = "Intense"
	IntensityTorrential Intensity = "Torrential"
)

// Severe reports whether the intensity is in the severe band that can
// escalate a triggered warning to High risk.
func (i Intensity) Severe() bool {
	switch i {
	case IntensityHeavy, IntensityIntense, IntensityTorrential:
		return true
	}
	return false
}

// ClassifyIntensity maps an hourly rain rate (mm/h) to its PAGASA advisory
// label. Total over all non-negative rates; boundaries are half-open, so
// 2.5 is Moderate and 2.4999 is Light.
func ClassifyIntensity(ratePerHour float64) Intensity {
	switch {
	case ratePerHour <= 0.01:
		return IntensityNone
	case ratePerHour < 2.5:
		return IntensityLight
	case ratePerHour < 7.6:
		return IntensityModerate
	case ratePerHour < 15:
		return IntensityHeavy
	case ratePerHour < 30:
		return IntensityIntense
	default:
		return IntensityTorrential
	}
}

// HourlyRate derives the mm/h rate from a total amount and duration in
// minutes. Durations at or below 0.01 minutes yield 0 rather than a
// division blow-up.
func HourlyRate(amountMM, durationMin float64) float64 {
	if durationMin <= 0.01 {
		return 0
	}
	return amountMM / durationMin * 60
}

// ForecastResult is one cycle's rainfall prediction statement. Rows are
// append-only facts, superseded only by newer cycles.
type ForecastResult struct {
	ID          int64     `json:"id,omitempty"`
	AmountMM    float64   `json:"amount_mm"`
	DurationMin float64   `json:"duration_min"`
	RatePerHour float64   `json:"rate_mm_per_hour"`
	Intensity   Intensity `json:"intensity"`
	Degraded    bool      `json:"degraded,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewForecastResult clamps the raw model outputs to their valid ranges and
// fills in the derived rate and intensity. Both engine variants go through
// this so downstream consumers never see which path produced the result.
func NewForecastResult(amountMM, durationMin float64, degraded bool) ForecastResult {
	if amountMM < 0 {
		amountMM = 0
	}
	if durationMin < 0 {
		durationMin = 0
	}
	rate := HourlyRate(amountMM, durationMin)
	return ForecastResult{
		AmountMM:    amountMM,
		DurationMin: durationMin,
		RatePerHour: rate,
		Intensity:   ClassifyIntensity(rate),
		Degraded:    degraded,
		CreatedAt:   clock.Now().UTC(),
	}
}
