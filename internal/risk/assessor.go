// Package risk maps a rainfall forecast onto per-area flood warnings using
// each area's terrain-adjusted thresholds.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/floodwatch/flood-alert-service/internal/domain"
)

// Base thresholds before the per-area multiplier is applied: 2.5 mm/h is the
// light/moderate rainfall boundary, 60 min the sustained-rain duration.
const (
	baseRainThreshold     = 2.5
	baseDurationThreshold = 60.0

	// Rain above this rate is flood-relevant regardless of duration.
	minRelevantRate = 1.0

	// Heavy-band rate that escalates a triggered warning to High even when
	// the intensity label alone is not severe.
	severeRate = 7.6
)

// Assess evaluates every area profile against the forecast independently and
// returns the triggered warnings ranked by severity (High first). Warnings
// with equal severity keep the profiles' order.
func Assess(fc domain.ForecastResult, profiles []domain.AreaRiskProfile, now time.Time) []domain.FloodWarning {
	var warnings []domain.FloodWarning
	for _, p := range profiles {
		if p.RiskMultiplier <= 0 {
			continue
		}
		level, ok := classify(fc, p)
		if !ok {
			continue
		}
		warnings = append(warnings, domain.FloodWarning{
			AreaID:      p.AreaID,
			AreaName:    p.Name,
			LandType:    p.LandType,
			Level:       level,
			Message:     warningMessage(p, fc),
			RatePerHour: fc.RatePerHour,
			DurationMin: fc.DurationMin,
			Intensity:   fc.Intensity,
			IssuedAt:    now.UTC(),
		})
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].Level.Rank() > warnings[j].Level.Rank()
	})
	return warnings
}

// classify applies the area's adjusted thresholds. A higher multiplier means
// more vulnerable terrain and therefore lower thresholds.
func classify(fc domain.ForecastResult, p domain.AreaRiskProfile) (domain.RiskLevel, bool) {
	adjustedRain := baseRainThreshold / p.RiskMultiplier
	adjustedDuration := baseDurationThreshold / p.RiskMultiplier

	triggered := fc.RatePerHour >= adjustedRain ||
		(fc.RatePerHour > minRelevantRate && fc.DurationMin > adjustedDuration)

	if triggered {
		if fc.Intensity.Severe() || fc.RatePerHour >= severeRate {
			return domain.RiskHigh, true
		}
		return domain.RiskModerate, true
	}

	// Higher-risk land types get an advisory for any flood-relevant rain.
	if fc.RatePerHour > minRelevantRate && p.RiskMultiplier > 1.0 {
		return domain.RiskLow, true
	}
	return "", false
}

func warningMessage(p domain.AreaRiskProfile, fc domain.ForecastResult) string {
	return fmt.Sprintf("%s: %.1f mm/h rain expected for %.0f minutes (%s). %s",
		p.Name, fc.RatePerHour, fc.DurationMin, fc.Intensity, p.Description)
}
