// Package notify resolves residents affected by flood warnings and sends
// them per-area SMS alerts through an external gateway.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/floodwatch/flood-alert-service/internal/domain"
	"github.com/floodwatch/flood-alert-service/internal/observability"
)

// Gateway sends one SMS message. Satisfied by the sms adapter.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}

// RecipientSource resolves residents whose address matches an area name.
// Satisfied by *store.DB.
type RecipientSource interface {
	RecipientsByArea(ctx context.Context, areaName string) ([]domain.Recipient, error)
}

// Dispatcher fans a cycle's warnings out to affected residents. Sends are
// throttled locally (burst of 2, then roughly one every second) so the
// gateway's own rate limits are respected.
type Dispatcher struct {
	gateway Gateway
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a Dispatcher around the given gateway.
func NewDispatcher(gateway Gateway, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		logger:  logger,
		metrics: metrics,
	}
}

// Dispatch sends one message per (area, cycle) to every resolved recipient
// in that area. A failed send never blocks the remaining recipients; the
// per-area sent/failed tallies are returned for logging.
func (d *Dispatcher) Dispatch(ctx context.Context, src RecipientSource, warnings []domain.FloodWarning) []domain.DispatchResult {
	if len(warnings) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	results := make([]domain.DispatchResult, 0, len(warnings))
	for _, w := range warnings {
		result := d.dispatchArea(ctx, src, w)
		d.logger.Info("area dispatch complete",
			"area", result.AreaName,
			"level", w.Level,
			"recipients", result.Recipients,
			"sent", result.Sent,
			"failed", result.Failed,
		)
		results = append(results, result)
	}
	return results
}

func (d *Dispatcher) dispatchArea(ctx context.Context, src RecipientSource, w domain.FloodWarning) domain.DispatchResult {
	result := domain.DispatchResult{AreaID: w.AreaID, AreaName: w.AreaName}

	raw, err := src.RecipientsByArea(ctx, w.AreaName)
	if err != nil {
		d.logger.Error("resolve recipients failed", "area", w.AreaName, "error", err)
		return result
	}

	recipients := make([]domain.Recipient, 0, len(raw))
	for _, r := range raw {
		phone, ok := NormalizePhone(r.Phone)
		if !ok {
			d.logger.Debug("skipping recipient with invalid phone", "name", r.Name, "area", w.AreaName)
			continue
		}
		recipients = append(recipients, domain.Recipient{Name: r.Name, Phone: phone})
	}
	result.Recipients = len(recipients)
	if len(recipients) == 0 {
		return result
	}

	message := ComposeMessage(w)
	for _, r := range recipients {
		if err := d.limiter.Wait(ctx); err != nil {
			// Shutdown mid-batch: count the rest as failed and stop.
			remaining := len(recipients) - result.Sent - result.Failed
			result.Failed += remaining
			d.metrics.SMSFailed.Add(float64(remaining))
			return result
		}
		if err := d.gateway.Send(ctx, r.Phone, message); err != nil {
			d.logger.Warn("sms send failed", "recipient", r.Name, "area", w.AreaName, "error", err)
			result.Failed++
			d.metrics.SMSFailed.Inc()
			continue
		}
		result.Sent++
		d.metrics.SMSSent.Inc()
	}
	return result
}

// ComposeMessage formats the alert text sent to every recipient in the
// warning's area.
func ComposeMessage(w domain.FloodWarning) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FLOOD ALERT - %s\n", strings.ToUpper(w.AreaName))
	fmt.Fprintf(&b, "Risk Level: %s\n", w.Level)
	fmt.Fprintf(&b, "Predicted Rain: %.1f mm/h for %.0f min\n", w.RatePerHour, w.DurationMin)
	fmt.Fprintf(&b, "Intensity: %s\n", w.Intensity)
	fmt.Fprintf(&b, "Land Type: %s\n", landTypeLabel(w.LandType))
	fmt.Fprintf(&b, "%s\n", w.Message)
	b.WriteString("Stay safe and monitor conditions.")
	return b.String()
}

// landTypeLabel turns a stored land-type key ("low_lying") into a
// human-readable label ("Low Lying").
func landTypeLabel(landType string) string {
	words := strings.Split(strings.ReplaceAll(landType, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
