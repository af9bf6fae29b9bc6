package alert_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/flood-alert-service/internal/alert"
	"github.com/floodwatch/flood-alert-service/internal/domain"
	"github.com/floodwatch/flood-alert-service/internal/observability"
)

// memStore mimics the warnings table with in-memory rows.
type memStore struct {
	forecasts   []domain.ForecastResult
	warnings    []domain.FloodWarning
	forecastErr error
	checkErr    error
	insertErr   error
}

func (m *memStore) InsertForecast(_ context.Context, fc *domain.ForecastResult) error {
	if m.forecastErr != nil {
		return m.forecastErr
	}
	m.forecasts = append(m.forecasts, *fc)
	return nil
}

func (m *memStore) DeleteWarningsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.FloodWarning
	var deleted int64
	for _, w := range m.warnings {
		if w.IssuedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	m.warnings = kept
	return deleted, nil
}

func (m *memStore) HasWarningForArea(_ context.Context, areaID int64) (bool, error) {
	if m.checkErr != nil {
		return false, m.checkErr
	}
	for _, w := range m.warnings {
		if w.AreaID == areaID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertWarning(_ context.Context, w *domain.FloodWarning) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.warnings = append(m.warnings, *w)
	return nil
}

func warningFor(areaID int64, name string) domain.FloodWarning {
	return domain.FloodWarning{
		AreaID: areaID, AreaName: name, Level: domain.RiskHigh,
		Message: "m", RatePerHour: 10, DurationMin: 30, Intensity: domain.IntensityHeavy,
	}
}

func TestPersistAndFilter(t *testing.T) {
	ctx := context.Background()
	fc := domain.ForecastResult{AmountMM: 5, DurationMin: 30, RatePerHour: 10, Intensity: domain.IntensityHeavy}

	t.Run("first issue passes and persists", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		st := &memStore{}
		d := alert.New(time.Hour, clock, slog.Default(), observability.NewMetricsForTesting())

		issued := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		require.Len(t, issued, 1)
		assert.Equal(t, clock.Now().UTC(), issued[0].IssuedAt)
		assert.Len(t, st.forecasts, 1)
		assert.Len(t, st.warnings, 1)
	})

	t.Run("repeat inside cooldown is suppressed", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		st := &memStore{}
		d := alert.New(time.Hour, clock, slog.Default(), observability.NewMetricsForTesting())

		first := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		require.Len(t, first, 1)

		clock.Advance(30 * time.Minute)
		second := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		assert.Empty(t, second)
		assert.Len(t, st.warnings, 1)
		// Forecast is still persisted every cycle.
		assert.Len(t, st.forecasts, 2)
	})

	t.Run("repeat after cooldown issues again", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		st := &memStore{}
		d := alert.New(time.Hour, clock, slog.Default(), observability.NewMetricsForTesting())

		d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		clock.Advance(61 * time.Minute)
		again := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		require.Len(t, again, 1)
		assert.Len(t, st.warnings, 1) // old row expired, new row inserted
	})

	t.Run("independent areas do not suppress each other", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		st := &memStore{}
		d := alert.New(time.Hour, clock, slog.Default(), observability.NewMetricsForTesting())

		d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		issued := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{
			warningFor(1, "Poblacion"), warningFor(2, "Riverside"),
		})
		require.Len(t, issued, 1)
		assert.Equal(t, "Riverside", issued[0].AreaName)
	})

	t.Run("forecast persistence failure does not abort", func(t *testing.T) {
		st := &memStore{forecastErr: errors.New("disk full")}
		d := alert.New(time.Hour, clockwork.NewFakeClock(), slog.Default(), observability.NewMetricsForTesting())

		issued := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		assert.Len(t, issued, 1)
	})

	t.Run("recency check failure issues rather than suppresses", func(t *testing.T) {
		st := &memStore{checkErr: errors.New("db locked")}
		d := alert.New(time.Hour, clockwork.NewFakeClock(), slog.Default(), observability.NewMetricsForTesting())

		issued := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		assert.Len(t, issued, 1)
	})

	t.Run("warning insert failure still dispatches in-memory", func(t *testing.T) {
		st := &memStore{insertErr: errors.New("db locked")}
		d := alert.New(time.Hour, clockwork.NewFakeClock(), slog.Default(), observability.NewMetricsForTesting())

		issued := d.PersistAndFilter(ctx, st, fc, []domain.FloodWarning{warningFor(1, "Poblacion")})
		assert.Len(t, issued, 1)
	})
}
