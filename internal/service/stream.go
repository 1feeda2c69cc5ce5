package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/metrics"
	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/UnknownOlympus/geotweet/internal/quota"
	"github.com/jonboulle/clockwork"
)

// Source yields statuses from the feed one at a time.
// A finite source returns io.EOF once it is drained.
type Source interface {
	Fetch(ctx context.Context) (models.FeedMessage, error)
}

// Sink publishes resolved statuses downstream.
type Sink interface {
	Publish(ctx context.Context, tagged models.GeoTagged) error
}

// Resolver is the part of Geocoder used by the stream.
type Resolver interface {
	Resolve(ctx context.Context, rec models.Record) (models.ResolvedLocation, error)
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Stream moves statuses from a Source through a Resolver to a Sink. A message is committed
// once its result is published. Resolution failures are published with the error and
// no coordinates; an exhausted quota stops the stream without committing.
type Stream struct {
	source   Source
	resolver Resolver
	sink     Sink
	log      *slog.Logger
	metrics  *metrics.Metrics
	clock    clockwork.Clock
}

// NewStream creates a Stream. A nil clock means the real clock.
func NewStream(
	source Source,
	resolver Resolver,
	sink Sink,
	log *slog.Logger,
	metrics *metrics.Metrics,
	clock clockwork.Clock,
) *Stream {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Stream{
		source:   source,
		resolver: resolver,
		sink:     sink,
		log:      log,
		metrics:  metrics,
		clock:    clock,
	}
}

// Run processes messages until ctx is canceled or the source is drained, returning nil,
// or until the quota is exceeded, returning the quota error.
func (s *Stream) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "Stream started...")

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Stream stopped.", "reason", ctx.Err())
			return nil
		}

		msg, err := s.source.Fetch(ctx)
		if errors.Is(err, io.EOF) {
			s.log.InfoContext(ctx, "Stream drained.")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.log.ErrorContext(ctx, "Failed to fetch message", "error", err)
			s.sleep(ctx, &backoff)
			continue
		}
		backoff = initialBackoff

		// Any other error means ctx ended while publishing.
		if err = s.handle(ctx, msg); errors.Is(err, quota.ErrQuotaExceeded) {
			s.log.ErrorContext(ctx, "Stopping stream, geocoding quota exceeded", "error", err)
			return err
		}
	}
}

// handle resolves, publishes and commits one message.
func (s *Stream) handle(ctx context.Context, msg models.FeedMessage) error {
	status := msg.Status
	tagged := models.GeoTagged{
		StatusID:   status.ID,
		ScreenName: status.User.ScreenName,
		Text:       status.Text,
		Location:   status.User.Location,
	}

	resolved, err := s.resolver.Resolve(ctx, status.Record())
	switch {
	case err == nil:
		tagged.Resolved = resolved
	case errors.Is(err, quota.ErrQuotaExceeded):
		return err
	default:
		s.log.WarnContext(ctx, "Failed to resolve status, publishing without location",
			"status", status.ID,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		s.metrics.StreamMessages.WithLabelValues(metrics.StreamFailed).Inc()
		tagged.Resolved = models.ResolvedLocation{Place: status.User.Location, Source: models.SourceNowhere}
		tagged.Error = err.Error()
	}
	tagged.ResolvedAt = s.clock.Now().UTC()

	backoff := initialBackoff
	for {
		err = s.sink.Publish(ctx, tagged)
		if err == nil {
			break
		}
		s.log.ErrorContext(ctx, "Failed to publish status", "status", status.ID, "error", err)
		if !s.sleep(ctx, &backoff) {
			return ctx.Err()
		}
	}
	s.metrics.StreamMessages.WithLabelValues(metrics.StreamPublished).Inc()

	if msg.Commit != nil {
		if err = msg.Commit(ctx); err != nil {
			s.log.WarnContext(ctx, "Failed to commit message", "error", err,
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}
	}

	return nil
}

// sleep waits for the current backoff and doubles it up to maxBackoff.
// It returns false if ctx ended first.
func (s *Stream) sleep(ctx context.Context, backoff *time.Duration) bool {
	timer := s.clock.NewTimer(*backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
	}

	*backoff = min(*backoff*2, maxBackoff)

	return true
}
