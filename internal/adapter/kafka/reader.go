package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/geotweet/internal/config"
	"github.com/UnknownOlympus/geotweet/internal/models"
	kafkago "github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafkago.Reader used by Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes Twitter statuses from the source topic.
// It implements service.Source.
type Reader struct {
	reader messageReader
	logger *slog.Logger
}

// NewReader creates a consumer group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.GroupID,
		Topic:    cfg.Kafka.SourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch returns the next status. Messages that are not valid statuses are committed
// and skipped, so they are not redelivered.
func (r *Reader) Fetch(ctx context.Context) (models.FeedMessage, error) {
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			return models.FeedMessage{}, fmt.Errorf("fetch message: %w", err)
		}

		feed, err := r.mapMessage(msg)
		if err == nil {
			return feed, nil
		}

		r.logger.WarnContext(ctx, "Skipping undecodable message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		if err = r.reader.CommitMessages(ctx, msg); err != nil {
			return models.FeedMessage{}, fmt.Errorf("commit skipped message: %w", err)
		}
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessage decodes a Kafka message into a FeedMessage whose Commit acknowledges it.
func (r *Reader) mapMessage(msg kafkago.Message) (models.FeedMessage, error) {
	var status models.Status
	if err := json.Unmarshal(msg.Value, &status); err != nil {
		return models.FeedMessage{}, fmt.Errorf("decode status: %w", err)
	}

	return models.FeedMessage{
		Status:    status,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}, nil
}
