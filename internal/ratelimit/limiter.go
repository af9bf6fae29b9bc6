// Package ratelimit is a sliding-window-by-reset request limiter shared by
// the web-facing endpoints. It is best-effort: minor over-admission under
// concurrent bursts is acceptable, and store failures fail open so an
// unavailable cache never blocks traffic.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/floodwatch/flood-alert-service/internal/observability"
)

// CounterStore holds one (count, window_start) entry per key with a TTL.
type CounterStore interface {
	Get(ctx context.Context, key string) (count int, windowStart time.Time, ok bool, err error)
	Set(ctx context.Context, key string, count int, windowStart time.Time, ttl time.Duration) error
}

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter applies per-(scope, client) request limits over a CounterStore.
type Limiter struct {
	store   CounterStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Limiter. Pass a nil clock for real time.
func New(store CounterStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Allow decides whether a request from clientID may proceed under the
// scope's limit. The window restarts once `window` has elapsed since the
// entry's window_start; until then requests beyond `limit` are denied with
// a RetryAfter of at least one second.
func (l *Limiter) Allow(ctx context.Context, scope, clientID string, limit int, window time.Duration) Decision {
	key := fmt.Sprintf("rl:%s:%s", scope, clientID)
	now := l.clock.Now()

	count, windowStart, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, failing open", "scope", scope, "error", err)
		l.metrics.RateLimitDecisions.WithLabelValues(scope, "failopen").Inc()
		return Decision{Allowed: true}
	}

	if !ok || now.Sub(windowStart) >= window {
		count, windowStart = 0, now
	}

	elapsed := now.Sub(windowStart)
	if count >= limit {
		retry := window - elapsed
		if retry < time.Second {
			retry = time.Second
		}
		l.metrics.RateLimitDecisions.WithLabelValues(scope, "denied").Inc()
		return Decision{Allowed: false, RetryAfter: retry}
	}

	if err := l.store.Set(ctx, key, count+1, windowStart, window); err != nil {
		// The request is still admitted; the lost increment only costs
		// accuracy, not availability.
		l.logger.Warn("rate limit store set failed", "scope", scope, "error", err)
	}
	l.metrics.RateLimitDecisions.WithLabelValues(scope, "allowed").Inc()
	return Decision{Allowed: true}
}
