package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/models"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages  []kafkago.Message
	committed []int64
	fetchErr  error
	commitErr error
}

func (f *fakeReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if len(f.messages) == 0 {
		return kafkago.Message{}, f.fetchErr
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	for _, msg := range msgs {
		f.committed = append(f.committed, msg.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeWriter struct {
	written []kafkago.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestReader_Fetch(t *testing.T) {
	ctx := t.Context()

	t.Run("maps and commits a status", func(t *testing.T) {
		fake := &fakeReader{messages: []kafkago.Message{{
			Topic:     "statuses",
			Partition: 2,
			Offset:    42,
			Value: []byte(`{"id_str":"1","text":"hi","user":{"screen_name":"someone","location":"Kyiv"},` +
				`"coordinates":{"coordinates":[30.52,50.45]}}`),
		}}}
		reader := &Reader{reader: fake, logger: testLogger()}

		msg, err := reader.Fetch(ctx)

		require.NoError(t, err)
		assert.Equal(t, "1", msg.Status.ID)
		assert.Equal(t, "Kyiv", msg.Status.User.Location)
		assert.Equal(t, "statuses", msg.Topic)
		assert.Equal(t, 2, msg.Partition)
		assert.Equal(t, int64(42), msg.Offset)
		rec := msg.Status.Record()
		require.NotNil(t, rec.Coordinates)
		assert.InDelta(t, 50.45, rec.Coordinates.Latitude, 1e-9)
		assert.InDelta(t, 30.52, rec.Coordinates.Longitude, 1e-9)
		assert.Empty(t, fake.committed)

		require.NoError(t, msg.Commit(ctx))
		assert.Equal(t, []int64{42}, fake.committed)
	})

	t.Run("undecodable messages are committed and skipped", func(t *testing.T) {
		fake := &fakeReader{messages: []kafkago.Message{
			{Offset: 1, Value: []byte("not json")},
			{Offset: 2, Value: []byte(`{"id_str":"2","user":{"location":""}}`)},
		}}
		reader := &Reader{reader: fake, logger: testLogger()}

		msg, err := reader.Fetch(ctx)

		require.NoError(t, err)
		assert.Equal(t, "2", msg.Status.ID)
		assert.Equal(t, []int64{1}, fake.committed)
	})

	t.Run("fetch error", func(t *testing.T) {
		reader := &Reader{reader: &fakeReader{fetchErr: assert.AnError}, logger: testLogger()}

		_, err := reader.Fetch(ctx)

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("commit of a skipped message fails", func(t *testing.T) {
		fake := &fakeReader{
			messages:  []kafkago.Message{{Offset: 1, Value: []byte("{")}},
			commitErr: assert.AnError,
		}
		reader := &Reader{reader: fake, logger: testLogger()}

		_, err := reader.Fetch(ctx)

		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	tagged := models.GeoTagged{
		StatusID: "status-1",
		Location: "Kyiv",
		Resolved: models.ResolvedLocation{
			Place:       "Kyiv",
			Coordinates: &models.Coordinates{Latitude: 50.45, Longitude: 30.52},
			Source:      models.SourceProfile,
		},
		ResolvedAt: now,
	}

	msg, err := serializeToMessage(tagged)
	require.NoError(t, err)

	assert.Equal(t, []byte("status-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"source":"profile"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte("profile"), msg.Headers[0].Value)
	assert.Equal(t, "resolved_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded models.GeoTagged
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, tagged, decoded)
}

func TestWriter_Publish(t *testing.T) {
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		fake := &fakeWriter{}
		writer := &Writer{writer: fake, logger: testLogger()}

		err := writer.Publish(ctx, models.GeoTagged{StatusID: "7", Resolved: models.ResolvedLocation{Source: models.SourceNowhere}})

		require.NoError(t, err)
		require.Len(t, fake.written, 1)
		assert.Equal(t, []byte("7"), fake.written[0].Key)
	})

	t.Run("error - write fails", func(t *testing.T) {
		writer := &Writer{writer: &fakeWriter{err: assert.AnError}, logger: testLogger()}

		err := writer.Publish(ctx, models.GeoTagged{StatusID: "7"})

		require.ErrorIs(t, err, assert.AnError)
	})
}
