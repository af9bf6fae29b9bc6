package store

import (
	"context"

	"github.com/floodwatch/flood-alert-service/internal/domain"
)

// DashboardSnapshot is the read model consumed by dashboards: the latest
// sensor reading, the latest forecast, and the ranked active warning list.
type DashboardSnapshot struct {
	Reading  *domain.Reading        `json:"latest_reading,omitempty"`
	Forecast *domain.ForecastResult `json:"latest_forecast,omitempty"`
	Warnings []domain.FloodWarning  `json:"active_warnings"`
}

// Dashboard assembles the read model. Missing pieces (no readings yet, no
// forecast yet) are nil rather than errors.
func (d *DB) Dashboard(ctx context.Context, locationID int64) (DashboardSnapshot, error) {
	reading, err := d.LatestReading(ctx, locationID)
	if err != nil {
		return DashboardSnapshot{}, err
	}
	forecast, err := d.LatestForecast(ctx)
	if err != nil {
		return DashboardSnapshot{}, err
	}
	warnings, err := d.ActiveWarnings(ctx)
	if err != nil {
		return DashboardSnapshot{}, err
	}
	if warnings == nil {
		warnings = []domain.FloodWarning{}
	}
	return DashboardSnapshot{Reading: reading, Forecast: forecast, Warnings: warnings}, nil
}
