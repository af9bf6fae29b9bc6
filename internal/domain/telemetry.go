package domain

import (
	"fmt"
	"time"
)

const (
	// SequenceLength is the number of consecutive historical readings the
	// regression model was trained on.
	SequenceLength = 6

	// FeatureCount is the number of features per sample.
	FeatureCount = 5
)

// Reading is a raw sensor row as stored by the ingestion paths.
type Reading struct {
	ID          int64     `json:"id,omitempty"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Pressure    float64   `json:"pressure"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// FeatureSample is one model input row: the four measured features plus the
// hour of day the reading was taken.
type FeatureSample struct {
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	Pressure    float64
	HourOfDay   int
}

// Vector returns the sample's features in model input order.
func (s FeatureSample) Vector() []float64 {
	return []float64{s.Temperature, s.Humidity, s.WindSpeed, s.Pressure, float64(s.HourOfDay)}
}

// FeatureSequence is an ordered run of samples, oldest first.
type FeatureSequence []FeatureSample

// Validate returns an error unless the sequence has exactly SequenceLength
// samples. Inference must not be attempted on an invalid sequence.
func (seq FeatureSequence) Validate() error {
	if len(seq) != SequenceLength {
		return fmt.Errorf("feature sequence has %d samples, need %d", len(seq), SequenceLength)
	}
	return nil
}

// BuildSequence converts readings into a feature sequence. Readings must
// already be ordered oldest→newest; the hour-of-day feature is taken from
// each reading's own timestamp.
func BuildSequence(readings []Reading) FeatureSequence {
	seq := make(FeatureSequence, 0, len(readings))
	for _, r := range readings {
		seq = append(seq, FeatureSample{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			WindSpeed:   r.WindSpeed,
			Pressure:    r.Pressure,
			HourOfDay:   r.RecordedAt.Hour(),
		})
	}
	return seq
}
