package pipeline

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
	"github.com/floodwatch/flood-alert-service/internal/forecast"
	"github.com/floodwatch/flood-alert-service/internal/notify"
	"github.com/floodwatch/flood-alert-service/internal/observability"
)

type fakeStore struct {
	readings    []domain.Reading
	readingsErr error
	forecasts   []domain.ForecastResult
	warnings    []domain.FloodWarning
	closed      bool
}

func (f *fakeStore) RecentReadings(_ context.Context, _ int64, _ int) ([]domain.Reading, error) {
	return f.readings, f.readingsErr
}

func (f *fakeStore) InsertForecast(_ context.Context, fc *domain.ForecastResult) error {
	fc.ID = int64(len(f.forecasts) + 1)
	f.forecasts = append(f.forecasts, *fc)
	return nil
}

func (f *fakeStore) DeleteWarningsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) HasWarningForArea(context.Context, int64) (bool, error) {
	return false, nil
}

func (f *fakeStore) InsertWarning(_ context.Context, w *domain.FloodWarning) error {
	w.ID = int64(len(f.warnings) + 1)
	f.warnings = append(f.warnings, *w)
	return nil
}

func (f *fakeStore) RecipientsByArea(context.Context, string) ([]domain.Recipient, error) {
	return nil, nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

type stubEngine struct {
	result domain.ForecastResult
	err    error
	calls  int
	panic  bool
}

func (s *stubEngine) Forecast(context.Context, domain.FeatureSequence) (domain.ForecastResult, error) {
	s.calls++
	if s.panic {
		panic("model exploded")
	}
	return s.result, s.err
}

type recordingDispatcher struct {
	calls    int
	warnings []domain.FloodWarning
}

func (r *recordingDispatcher) Dispatch(_ context.Context, _ notify.RecipientSource, warnings []domain.FloodWarning) []domain.DispatchResult {
	r.calls++
	r.warnings = append(r.warnings, warnings...)
	return nil
}

func fullReadings(n int) []domain.Reading {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	readings := make([]domain.Reading, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, domain.Reading{
			Temperature: 27.5,
			Humidity:    85,
			WindSpeed:   12,
			Pressure:    1008,
			RecordedAt:  base.Add(time.Duration(i) * 10 * time.Minute),
		})
	}
	return readings
}

func testProfiles() []domain.AreaRiskProfile {
	return []domain.AreaRiskProfile{
		{AreaID: 1, Name: "Riverside", LandType: "floodplain", RiskMultiplier: 2.0},
		{AreaID: 2, Name: "Hilltop", LandType: "elevated", RiskMultiplier: 0.5},
	}
}

func newTestPipeline(t *testing.T, st Store, eng Engine, disp Dispatcher) (*Pipeline, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	logger := slog.Default()
	metrics := observability.NewMetricsForTesting()
	deduper := alert.New(time.Hour, fc, logger, metrics)
	open := func() (Store, error) { return st, nil }
	return New(open, eng, deduper, disp, testProfiles(), 1, 10*time.Minute, fc, logger, metrics), fc
}

func TestRunCycle(t *testing.T) {
	t.Run("full cycle dispatches triggered warnings", func(t *testing.T) {
		st := &fakeStore{readings: fullReadings(domain.SequenceLength)}
		eng := &stubEngine{result: domain.NewForecastResult(1.5, 30, false)}
		disp := &recordingDispatcher{}
		p, _ := newTestPipeline(t, st, eng, disp)

		require.NoError(t, p.runCycle(context.Background()))

		assert.Equal(t, 1, eng.calls)
		require.Len(t, st.forecasts, 1)
		// 3 mm/h clears the floodplain's lowered threshold but not the
		// elevated area's raised one.
		require.Len(t, st.warnings, 1)
		assert.Equal(t, "Riverside", st.warnings[0].AreaName)
		assert.Equal(t, domain.RiskModerate, st.warnings[0].Level)
		assert.Equal(t, 1, disp.calls)
		assert.True(t, st.closed)
		assert.NoError(t, p.CheckReadiness(context.Background()))
	})

	t.Run("short history skips the cycle without forecasting", func(t *testing.T) {
		st := &fakeStore{readings: fullReadings(3)}
		eng := &stubEngine{}
		disp := &recordingDispatcher{}
		p, _ := newTestPipeline(t, st, eng, disp)

		require.NoError(t, p.runCycle(context.Background()))

		assert.Zero(t, eng.calls)
		assert.Empty(t, st.forecasts)
		assert.Zero(t, disp.calls)
		assert.True(t, st.closed)
		// warm-up is a healthy state, not a failure
		assert.NoError(t, p.CheckReadiness(context.Background()))
	})

	t.Run("store open failure is a cycle error", func(t *testing.T) {
		eng := &stubEngine{}
		p, _ := newTestPipeline(t, &fakeStore{}, eng, &recordingDispatcher{})
		p.open = func() (Store, error) { return nil, errors.New("disk gone") }

		err := p.runCycle(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open store")
		assert.Error(t, p.CheckReadiness(context.Background()))
	})

	t.Run("reading fetch failure is a cycle error", func(t *testing.T) {
		st := &fakeStore{readingsErr: errors.New("table locked")}
		p, _ := newTestPipeline(t, st, &stubEngine{}, &recordingDispatcher{})

		err := p.runCycle(context.Background())
		require.Error(t, err)
		assert.True(t, st.closed)
	})

	t.Run("forecast failure skips the cycle", func(t *testing.T) {
		st := &fakeStore{readings: fullReadings(domain.SequenceLength)}
		eng := &stubEngine{err: errors.New("inference timeout")}
		disp := &recordingDispatcher{}
		p, _ := newTestPipeline(t, st, eng, disp)

		require.NoError(t, p.runCycle(context.Background()))
		assert.Empty(t, st.forecasts)
		assert.Zero(t, disp.calls)
	})

	t.Run("quiet forecast dispatches nothing", func(t *testing.T) {
		st := &fakeStore{readings: fullReadings(domain.SequenceLength)}
		eng := &stubEngine{result: domain.NewForecastResult(0.1, 30, false)}
		disp := &recordingDispatcher{}
		p, _ := newTestPipeline(t, st, eng, disp)

		require.NoError(t, p.runCycle(context.Background()))
		require.Len(t, st.forecasts, 1)
		assert.Empty(t, st.warnings)
		assert.Zero(t, disp.calls)
	})
}

func TestRunCycleHeuristicFallback(t *testing.T) {
	// Humid, warm readings through the fallback engine: 5 mm over 30 min
	// is 10 mm/h, Heavy, which is High risk for every triggered area.
	st := &fakeStore{readings: fullReadings(domain.SequenceLength)}
	eng := forecast.NewHeuristicEngine(slog.Default())
	disp := &recordingDispatcher{}
	p, _ := newTestPipeline(t, st, eng, disp)

	require.NoError(t, p.runCycle(context.Background()))

	require.Len(t, st.forecasts, 1)
	fc := st.forecasts[0]
	assert.Equal(t, 5.0, fc.AmountMM)
	assert.Equal(t, 30.0, fc.DurationMin)
	assert.Equal(t, 10.0, fc.RatePerHour)
	assert.Equal(t, domain.IntensityHeavy, fc.Intensity)
	assert.True(t, fc.Degraded)

	// 10 mm/h clears both areas' thresholds
	require.Len(t, st.warnings, 2)
	assert.Equal(t, "Riverside", st.warnings[0].AreaName)
	assert.Equal(t, domain.RiskHigh, st.warnings[0].Level)
	assert.Equal(t, domain.RiskHigh, st.warnings[1].Level)
	assert.Equal(t, 1, disp.calls)
}

func TestRunCycleGuarded(t *testing.T) {
	st := &fakeStore{readings: fullReadings(domain.SequenceLength)}
	eng := &stubEngine{panic: true}
	p, _ := newTestPipeline(t, st, eng, &recordingDispatcher{})

	err := p.runCycleGuarded(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle panicked")
}

func TestRunStopsOnCancel(t *testing.T) {
	cycled := make(chan struct{}, 1)
	st := &fakeStore{readings: fullReadings(3)}
	eng := &stubEngine{}
	p, _ := newTestPipeline(t, st, eng, &recordingDispatcher{})
	p.open = func() (Store, error) {
		select {
		case cycled <- struct{}{}:
		default:
		}
		return st, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-cycled:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never ran a cycle")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}
