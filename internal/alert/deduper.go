// Package alert persists forecast and warning rows and suppresses repeat
// warnings inside the per-area cooldown window, so one flood event does not
// re-page residents every cycle.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/floodwatch/flood-alert-service/internal/domain"
	"github.com/floodwatch/flood-alert-service/internal/observability"
)

// Store is the persistence surface the deduplicator needs. Satisfied by
// *store.DB; narrowed here so tests can substitute a mock.
type Store interface {
	InsertForecast(ctx context.Context, fc *domain.ForecastResult) error
	DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	HasWarningForArea(ctx context.Context, areaID int64) (bool, error)
	InsertWarning(ctx context.Context, w *domain.FloodWarning) error
}

// Deduplicator filters and persists one cycle's warnings.
type Deduplicator struct {
	cooldown time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Deduplicator. Pass a nil clock for real time.
func New(cooldown time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Deduplicator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deduplicator{cooldown: cooldown, clock: clock, logger: logger, metrics: metrics}
}

// PersistAndFilter records the forecast, expires warnings older than the
// cooldown, suppresses warnings for areas still inside it, and persists the
// survivors. It returns the warnings actually issued this cycle.
//
// Persistence failures are logged and never abort the cycle: the forecast
// insert is best-effort, and a failed recency check issues the warning
// rather than suppressing it. A duplicate SMS is cheaper than a missed
// flood warning.
func (d *Deduplicator) PersistAndFilter(ctx context.Context, st Store, fc domain.ForecastResult, warnings []domain.FloodWarning) []domain.FloodWarning {
	if err := st.InsertForecast(ctx, &fc); err != nil {
		d.logger.Error("persist forecast failed", "error", err)
	} else {
		d.metrics.ForecastsPersisted.Inc()
	}

	now := d.clock.Now()
	cutoff := now.Add(-d.cooldown)
	if expired, err := st.DeleteWarningsBefore(ctx, cutoff); err != nil {
		d.logger.Error("expire old warnings failed", "error", err)
	} else if expired > 0 {
		d.logger.Info("expired warnings past cooldown", "count", expired, "cutoff", cutoff)
	}

	issued := make([]domain.FloodWarning, 0, len(warnings))
	for _, w := range warnings {
		recent, err := st.HasWarningForArea(ctx, w.AreaID)
		if err != nil {
			d.logger.Error("recency check failed, issuing anyway", "area", w.AreaName, "error", err)
		} else if recent {
			d.logger.Debug("warning suppressed inside cooldown", "area", w.AreaName, "level", w.Level)
			d.metrics.WarningsSuppressed.Inc()
			continue
		}

		w.IssuedAt = now.UTC()
		if err := st.InsertWarning(ctx, &w); err != nil {
			d.logger.Error("persist warning failed", "area", w.AreaName, "error", err)
			// Still dispatch from the in-memory warning.
		}
		d.metrics.WarningsIssued.WithLabelValues(string(w.Level)).Inc()
		issued = append(issued, w)
	}
	return issued
}
