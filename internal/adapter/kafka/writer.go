package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/config"
	"github.com/UnknownOlympus/geotweet/internal/models"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces resolved statuses to a Kafka topic.
// It implements service.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.SinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one resolved status.
func (w *Writer) Publish(ctx context.Context, tagged models.GeoTagged) error {
	msg, err := serializeToMessage(tagged)
	if err != nil {
		return err
	}
	if err = w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	w.logger.DebugContext(ctx, "Published status", "status", tagged.StatusID, "source", tagged.Resolved.Source)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a GeoTagged status into a Kafka message keyed by status id.
func serializeToMessage(tagged models.GeoTagged) (kafkago.Message, error) {
	data, err := json.Marshal(tagged)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geotagged status: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(tagged.StatusID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(tagged.Resolved.Source)},
			{Key: "resolved_at", Value: []byte(tagged.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
