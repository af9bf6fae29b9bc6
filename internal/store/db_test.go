package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/flood-alert-service/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecentReadings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 14, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		err := db.InsertReading(ctx, 1, domain.Reading{
			Temperature: 25 + float64(i),
			Humidity:    80,
			WindSpeed:   2,
			Pressure:    1010,
			RecordedAt:  base.Add(time.Duration(i) * 10 * time.Minute),
		})
		require.NoError(t, err)
	}

	t.Run("returns newest n in chronological order", func(t *testing.T) {
		readings, err := db.RecentReadings(ctx, 1, domain.SequenceLength)
		require.NoError(t, err)
		require.Len(t, readings, domain.SequenceLength)
		assert.Equal(t, 29.0, readings[0].Temperature)
		assert.Equal(t, 34.0, readings[5].Temperature)
		assert.True(t, readings[0].RecordedAt.Before(readings[5].RecordedAt))
	})

	t.Run("short history returns fewer rows not an error", func(t *testing.T) {
		readings, err := db.RecentReadings(ctx, 99, domain.SequenceLength)
		require.NoError(t, err)
		assert.Empty(t, readings)
	})
}

func TestRiskProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, domain.AreaRiskProfile{
		Name: "Poblacion", LandType: "low_lying", RiskMultiplier: 2.0,
		Description: "Prone to street flooding near the creek.",
	}))
	require.NoError(t, db.UpsertProfile(ctx, domain.AreaRiskProfile{
		Name: "Hilltop", LandType: "elevated", RiskMultiplier: 0.5,
		Description: "Rarely floods.",
	}))
	// Upsert by name updates in place.
	require.NoError(t, db.UpsertProfile(ctx, domain.AreaRiskProfile{
		Name: "Hilltop", LandType: "elevated", RiskMultiplier: 0.6,
		Description: "Rarely floods.",
	}))

	profiles, err := db.RiskProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Poblacion", profiles[0].Name)
	assert.Equal(t, 0.6, profiles[1].RiskMultiplier)
}

func TestRecipientsByArea(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddResident(ctx, "Ana Cruz", "09171234567", "Purok 2, Poblacion, Bago City"))
	require.NoError(t, db.AddResident(ctx, "Ben Reyes", "9171234568", "Sitio Ilaya, Hilltop, Bago City"))
	require.NoError(t, db.AddResident(ctx, "No Phone", "", "Poblacion, Bago City"))

	recipients, err := db.RecipientsByArea(ctx, "Poblacion")
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "Ana Cruz", recipients[0].Name)
	assert.Equal(t, "09171234567", recipients[0].Phone)
}

func TestWarningLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 14, 8, 0, 0, 0, time.UTC)

	old := domain.FloodWarning{AreaID: 1, AreaName: "Poblacion", Level: domain.RiskModerate,
		Message: "m", RatePerHour: 3, DurationMin: 40, Intensity: domain.IntensityModerate,
		IssuedAt: now.Add(-2 * time.Hour)}
	fresh := domain.FloodWarning{AreaID: 2, AreaName: "Riverside", Level: domain.RiskHigh,
		Message: "m", RatePerHour: 10, DurationMin: 30, Intensity: domain.IntensityHeavy,
		IssuedAt: now.Add(-10 * time.Minute)}

	require.NoError(t, db.InsertWarning(ctx, &old))
	require.NoError(t, db.InsertWarning(ctx, &fresh))
	assert.NotZero(t, fresh.ID)

	deleted, err := db.DeleteWarningsBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	has, err := db.HasWarningForArea(ctx, 2)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = db.HasWarningForArea(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)

	active, err := db.ActiveWarnings(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.RiskHigh, active[0].Level)
}

func TestDashboard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 14, 8, 0, 0, 0, time.UTC)

	t.Run("empty database yields empty snapshot", func(t *testing.T) {
		snap, err := db.Dashboard(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, snap.Reading)
		assert.Nil(t, snap.Forecast)
		assert.Empty(t, snap.Warnings)
	})

	require.NoError(t, db.InsertReading(ctx, 1, domain.Reading{
		Temperature: 28, Humidity: 85, WindSpeed: 3, Pressure: 1008, RecordedAt: now,
	}))
	fc := domain.ForecastResult{AmountMM: 5, DurationMin: 30, RatePerHour: 10,
		Intensity: domain.IntensityHeavy, CreatedAt: now}
	require.NoError(t, db.InsertForecast(ctx, &fc))
	assert.NotZero(t, fc.ID)

	w := domain.FloodWarning{AreaID: 1, AreaName: "Poblacion", Level: domain.RiskHigh,
		Message: "m", RatePerHour: 10, DurationMin: 30, Intensity: domain.IntensityHeavy, IssuedAt: now}
	require.NoError(t, db.InsertWarning(ctx, &w))

	snap, err := db.Dashboard(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, snap.Reading)
	require.NotNil(t, snap.Forecast)
	assert.Equal(t, 28.0, snap.Reading.Temperature)
	assert.Equal(t, domain.IntensityHeavy, snap.Forecast.Intensity)
	require.Len(t, snap.Warnings, 1)
}
