// Package kafka consumes sensor telemetry published to a Kafka topic and
// appends it to the readings store. It is an optional second ingestion path
// next to the HTTP endpoint; the forecast loop does not care which path a
// reading arrived through.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodwatch/flood-alert-service/internal/config"
	"github.com/floodwatch/flood-alert-service/internal/domain"
)

// ReadingAppender persists one reading row. Satisfied by *store.DB.
type ReadingAppender interface {
	InsertReading(ctx context.Context, locationID int64, r domain.Reading) error
}

// telemetryMessage is the wire form sensors publish.
type telemetryMessage struct {
	LocationID  int64   `json:"location_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Pressure    float64 `json:"pressure"`
	RecordedAt  string  `json:"recorded_at"` // RFC 3339; empty falls back to the message timestamp
}

// Ingestor reads telemetry messages and appends them as readings.
type Ingestor struct {
	reader    *kafkago.Reader
	appender  ReadingAppender
	defaultID int64
	logger    *slog.Logger
}

// NewIngestor creates a consumer for the configured telemetry topic.
func NewIngestor(cfg *config.Config, appender ReadingAppender, logger *slog.Logger) *Ingestor {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Ingestor{reader: r, appender: appender, defaultID: cfg.LocationID, logger: logger}
}

// Run consumes until the context is cancelled. Malformed messages are logged
// and committed so they are not re-delivered forever; insert failures leave
// the offset uncommitted for redelivery.
func (i *Ingestor) Run(ctx context.Context) error {
	i.logger.Info("kafka ingestor started", "topic", i.reader.Config().Topic)
	for {
		msg, err := i.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch telemetry message: %w", err)
		}

		reading, locationID, err := mapMessage(msg, i.defaultID)
		if err != nil {
			i.logger.Warn("dropping malformed telemetry message",
				"error", err, "partition", msg.Partition, "offset", msg.Offset)
			i.commit(ctx, msg)
			continue
		}

		if err := i.appender.InsertReading(ctx, locationID, reading); err != nil {
			i.logger.Error("persist telemetry reading failed", "error", err)
			continue
		}
		i.commit(ctx, msg)
	}
}

func (i *Ingestor) commit(ctx context.Context, msg kafkago.Message) {
	if err := i.reader.CommitMessages(ctx, msg); err != nil {
		i.logger.Warn("commit offset failed", "error", err,
			"partition", msg.Partition, "offset", msg.Offset)
	}
}

func (i *Ingestor) Close() error {
	return i.reader.Close()
}

// mapMessage deserializes a telemetry message into a reading, defaulting the
// location and timestamp from the message metadata when absent.
func mapMessage(msg kafkago.Message, defaultLocationID int64) (domain.Reading, int64, error) {
	var tm telemetryMessage
	if err := json.Unmarshal(msg.Value, &tm); err != nil {
		return domain.Reading{}, 0, fmt.Errorf("parse telemetry message: %w", err)
	}

	recordedAt := msg.Time
	if tm.RecordedAt != "" {
		t, err := time.Parse(time.RFC3339, tm.RecordedAt)
		if err != nil {
			return domain.Reading{}, 0, fmt.Errorf("parse recorded_at: %w", err)
		}
		recordedAt = t
	}

	locationID := tm.LocationID
	if locationID == 0 {
		locationID = defaultLocationID
	}

	return domain.Reading{
		Temperature: tm.Temperature,
		Humidity:    tm.Humidity,
		WindSpeed:   tm.WindSpeed,
		Pressure:    tm.Pressure,
		RecordedAt:  recordedAt.UTC(),
	}, locationID, nil
}
