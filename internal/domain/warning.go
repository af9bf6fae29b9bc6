package domain

import "time"

// RiskLevel is the per-area flood risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Rank orders risk levels for sorting: High=3, Moderate=2, Low=1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskModerate:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// AreaRiskProfile is static reference data describing one monitored area's
// terrain-dependent flood vulnerability. Loaded once at startup, never
// mutated afterwards.
type AreaRiskProfile struct {
	AreaID         int64
	Name           string
	LandType       string
	RiskMultiplier float64
	Description    string
}

// FloodWarning is issued for one (area, cycle) where the forecast exceeds
// the area's adjusted thresholds.
type FloodWarning struct {
	ID          int64     `json:"id,omitempty"`
	AreaID      int64     `json:"area_id"`
	AreaName    string    `json:"area_name"`
	LandType    string    `json:"land_type"`
	Level       RiskLevel `json:"risk_level"`
	Message     string    `json:"message"`
	RatePerHour float64   `json:"rain_rate"`
	DurationMin float64   `json:"duration"`
	Intensity   Intensity `json:"intensity"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Recipient is a resident resolved for notification, with a normalized
// international phone number.
type Recipient struct {
	Name  string
	Phone string
}

// DispatchResult summarizes one area's notification batch. Ephemeral: it is
// logged, never persisted.
type DispatchResult struct {
	AreaID     int64
	AreaName   string
	Recipients int
	Sent       int
	Failed     int
}
