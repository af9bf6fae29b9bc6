// Package pipeline runs the periodic forecast cycle: assemble the telemetry
// sequence, produce a forecast, assess per-area flood risk, deduplicate and
// persist warnings, and dispatch notifications.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/floodwatch/flood-alert-service/internal/alert"
	"github.com/floodwatch/flood-alert-service/internal/domain"
	"github.com/floodwatch/flood-alert-service/internal/notify"
	"github.com/floodwatch/flood-alert-service/internal/observability"
	"github.com/floodwatch/flood-alert-service/internal/risk"
)

// Engine produces one forecast from a complete feature sequence.
type Engine interface {
	Forecast(ctx context.Context, seq domain.FeatureSequence) (domain.ForecastResult, error)
}

// Store is the per-cycle persistence handle. Satisfied by *store.DB.
type Store interface {
	RecentReadings(ctx context.Context, locationID int64, n int) ([]domain.Reading, error)
	InsertForecast(ctx context.Context, fc *domain.ForecastResult) error
	DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	HasWarningForArea(ctx context.Context, areaID int64) (bool, error)
	InsertWarning(ctx context.Context, w *domain.FloodWarning) error
	RecipientsByArea(ctx context.Context, areaName string) ([]domain.Recipient, error)
	Close() error
}

// StoreOpener opens a fresh Store. The pipeline opens one per cycle and
// closes it at cycle end, so a broken connection never outlives its cycle.
type StoreOpener func() (Store, error)

// Dispatcher fans issued warnings out to residents.
type Dispatcher interface {
	Dispatch(ctx context.Context, src notify.RecipientSource, warnings []domain.FloodWarning) []domain.DispatchResult
}

// Pipeline orchestrates the forecast-assess-alert-dispatch cycle.
type Pipeline struct {
	open       StoreOpener
	engine     Engine
	deduper    *alert.Deduplicator
	dispatcher Dispatcher
	profiles   []domain.AreaRiskProfile
	locationID int64
	interval   time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	// errBackoff is the pause after a failed or panicked cycle before the
	// loop resumes waiting for ticks.
	errBackoff time.Duration
}

// New creates a Pipeline. The profiles slice is read-only reference data
// loaded at startup and shared across cycles without locking.
func New(open StoreOpener, engine Engine, deduper *alert.Deduplicator, dispatcher Dispatcher,
	profiles []domain.AreaRiskProfile, locationID int64, interval time.Duration,
	clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		open:       open,
		engine:     engine,
		deduper:    deduper,
		dispatcher: dispatcher,
		profiles:   profiles,
		locationID: locationID,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		errBackoff: time.Minute,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast cycle has completed yet")
	}
	return nil
}

// Run executes the periodic loop until the context is cancelled. Cycles are
// synchronous: if one overruns the interval, the next tick is simply
// delayed, never run concurrently.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("forecast loop started",
		"interval", p.interval, "areas", len(p.profiles), "location_id", p.locationID)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.runCycleGuarded(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("forecast loop stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("forecast cycle failed", "error", err)
			if !p.sleep(ctx, p.errBackoff) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("forecast loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// runCycleGuarded converts a panicking cycle into an error so one bad cycle
// can never kill the scheduler.
func (p *Pipeline) runCycleGuarded(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.CyclesSkipped.WithLabelValues("panic").Inc()
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return p.runCycle(ctx)
}

func (p *Pipeline) runCycle(ctx context.Context) error {
	p.metrics.CyclesTotal.Inc()

	st, err := p.open()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			p.logger.Warn("close store failed", "error", cerr)
		}
	}()

	readings, err := st.RecentReadings(ctx, p.locationID, domain.SequenceLength)
	if err != nil {
		return fmt.Errorf("fetch readings: %w", err)
	}
	if len(readings) < domain.SequenceLength {
		p.logger.Info("not enough readings, skipping cycle",
			"have", len(readings), "need", domain.SequenceLength)
		p.metrics.CyclesSkipped.WithLabelValues("short_sequence").Inc()
		p.ready.Store(true)
		return nil
	}

	seq := domain.BuildSequence(readings)

	inferStart := time.Now()
	fc, err := p.engine.Forecast(ctx, seq)
	if err != nil {
		p.logger.Error("forecast failed, skipping cycle", "error", err)
		p.metrics.CyclesSkipped.WithLabelValues("forecast_error").Inc()
		return nil
	}
	p.metrics.InferenceDuration.Observe(time.Since(inferStart).Seconds())

	p.logger.Info("forecast produced",
		"amount_mm", fc.AmountMM,
		"duration_min", fc.DurationMin,
		"rate_mm_per_hour", fc.RatePerHour,
		"intensity", fc.Intensity,
		"degraded", fc.Degraded,
	)

	warnings := risk.Assess(fc, p.profiles, p.clock.Now())
	issued := p.deduper.PersistAndFilter(ctx, st, fc, warnings)

	if len(issued) > 0 {
		p.logger.Info("dispatching flood warnings", "count", len(issued))
		p.dispatcher.Dispatch(ctx, st, issued)
	}

	p.ready.Store(true)
	return nil
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
