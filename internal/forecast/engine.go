// Package forecast turns a telemetry sequence into a rainfall forecast.
//
// Two engine variants exist, selected once at startup: a model-backed engine
// that standardizes features and calls the pretrained regression model, and
// a heuristic fallback used when the model or its scalers are unavailable.
// Both produce the same ForecastResult shape, so nothing downstream can tell
// them apart.
package forecast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/floodwatch/flood-alert-service/internal/domain"
)

// Model is the frozen regression artifact's invocation contract: a scaled
// SequenceLength×FeatureCount tensor in, two scaled targets (amount,
// duration) out.
type Model interface {
	Predict(ctx context.Context, sequence [][]float64) ([]float64, error)
}

// Engine produces one forecast per cycle from a complete feature sequence.
type Engine interface {
	Forecast(ctx context.Context, seq domain.FeatureSequence) (domain.ForecastResult, error)

	// Degraded reports whether this engine is the heuristic fallback.
	Degraded() bool
}

// ModelEngine runs the pretrained regression model behind an inference
// client, with the offline-learned feature standardization on both ends.
type ModelEngine struct {
	model     Model
	inScaler  Scaler
	outScaler Scaler
	logger    *slog.Logger
}

// NewModelEngine creates the model-backed engine. The scalers must match the
// model's training: inScaler over the five features, outScaler over the two
// targets.
func NewModelEngine(model Model, inScaler, outScaler Scaler, logger *slog.Logger) (*ModelEngine, error) {
	if len(inScaler.Mean) != domain.FeatureCount {
		return nil, fmt.Errorf("input scaler covers %d features, model expects %d", len(inScaler.Mean), domain.FeatureCount)
	}
	if len(outScaler.Mean) != 2 {
		return nil, fmt.Errorf("output scaler covers %d targets, model produces 2", len(outScaler.Mean))
	}
	return &ModelEngine{model: model, inScaler: inScaler, outScaler: outScaler, logger: logger}, nil
}

func (e *ModelEngine) Degraded() bool { return false }

// Forecast standardizes the sequence, invokes the model, and denormalizes
// the outputs. Shape or scaling errors are returned to the caller, which
// skips the cycle; they never disable future cycles.
func (e *ModelEngine) Forecast(ctx context.Context, seq domain.FeatureSequence) (domain.ForecastResult, error) {
	if err := seq.Validate(); err != nil {
		return domain.ForecastResult{}, err
	}

	tensor := make([][]float64, len(seq))
	for i, sample := range seq {
		scaled, err := e.inScaler.Transform(sample.Vector())
		if err != nil {
			return domain.ForecastResult{}, fmt.Errorf("scale sample %d: %w", i, err)
		}
		tensor[i] = scaled
	}

	scaledOut, err := e.model.Predict(ctx, tensor)
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("model inference: %w", err)
	}

	targets, err := e.outScaler.Inverse(scaledOut)
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("denormalize outputs: %w", err)
	}

	return domain.NewForecastResult(targets[0], targets[1], false), nil
}

// Heuristic thresholds: three tiers keyed on the newest sample's humidity
// and temperature, tuned to the monitored climate.
const (
	heavyHumidity    = 80.0
	heavyTempCeiling = 30.0
	wetHumidity      = 70.0
)

// HeuristicEngine is the degraded-mode fallback. It ignores history beyond
// the newest sample and maps humidity/temperature bands straight to an
// amount and duration, then derives rate and intensity exactly like the
// model path.
type HeuristicEngine struct {
	logger *slog.Logger
}

// NewHeuristicEngine creates the fallback engine.
func NewHeuristicEngine(logger *slog.Logger) *HeuristicEngine {
	return &HeuristicEngine{logger: logger}
}

func (e *HeuristicEngine) Degraded() bool { return true }

func (e *HeuristicEngine) Forecast(_ context.Context, seq domain.FeatureSequence) (domain.ForecastResult, error) {
	if err := seq.Validate(); err != nil {
		return domain.ForecastResult{}, err
	}

	latest := seq[len(seq)-1]

	var amount, duration float64
	switch {
	case latest.Humidity > heavyHumidity && latest.Temperature < heavyTempCeiling:
		amount, duration = 5.0, 30.0
	case latest.Humidity > wetHumidity:
		amount, duration = 2.0, 15.0
	default:
		amount, duration = 0.5, 5.0
	}

	return domain.NewForecastResult(amount, duration, true), nil
}

var (
	_ Engine = (*ModelEngine)(nil)
	_ Engine = (*HeuristicEngine)(nil)
)
