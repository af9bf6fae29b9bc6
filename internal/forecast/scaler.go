package forecast

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scaler applies a fixed standardization learned offline: z = (x - mean) / std.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// scalerArtifact is the on-disk form: one scaler for the five input features
// and one for the two model targets (amount, duration).
type scalerArtifact struct {
	Input  Scaler `json:"input"`
	Output Scaler `json:"output"`
}

// LoadScalers reads the scaler artifact produced alongside the trained model.
func LoadScalers(path string) (input, output Scaler, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scaler{}, Scaler{}, fmt.Errorf("read scaler artifact: %w", err)
	}
	var art scalerArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return Scaler{}, Scaler{}, fmt.Errorf("parse scaler artifact: %w", err)
	}
	if err := art.Input.validate(); err != nil {
		return Scaler{}, Scaler{}, fmt.Errorf("input scaler: %w", err)
	}
	if err := art.Output.validate(); err != nil {
		return Scaler{}, Scaler{}, fmt.Errorf("output scaler: %w", err)
	}
	return art.Input, art.Output, nil
}

func (s Scaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return fmt.Errorf("mean/std length mismatch: %d vs %d", len(s.Mean), len(s.Std))
	}
	for i, sd := range s.Std {
		if sd == 0 {
			return fmt.Errorf("zero std at index %d", i)
		}
	}
	return nil
}

// Transform standardizes one feature vector. The vector length must match
// the scaler's dimensionality.
func (s Scaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, fmt.Errorf("feature vector has %d values, scaler expects %d", len(features), len(s.Mean))
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out, nil
}

// Inverse undoes the standardization on a model output vector.
func (s Scaler) Inverse(scaled []float64) ([]float64, error) {
	if len(scaled) != len(s.Mean) {
		return nil, fmt.Errorf("output vector has %d values, scaler expects %d", len(scaled), len(s.Mean))
	}
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = v*s.Std[i] + s.Mean[i]
	}
	return out, nil
}
