package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-data-aggregator/internal/config"
	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes canonical report rows to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, topic: cfg.KafkaSinkTopic, logger: logger}
}

// LoadBatch serializes and publishes every row in a single WriteMessages call.
// Rows are keyed by domain.RowKey so re-publishing a run overwrites the same
// keys in compacted topics.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.CanonicalRow) error {
	if len(rows) == 0 {
		return nil
	}
	runID := domain.RunIDFromContext(ctx)
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", w.topic, err)
	}
	w.logger.Info("rows published", "topic", w.topic, "rows", len(rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a canonical row into a Kafka message.
func serializeToMessage(row domain.CanonicalRow, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize storm report: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "type", Value: []byte(row.Type)},
	}
	if runID != "" {
		headers = append(headers, kafkago.Header{Key: "run_id", Value: []byte(runID)})
	}
	return kafkago.Message{
		Key:     []byte(domain.RowKey(row)),
		Value:   data,
		Headers: headers,
	}, nil
}
