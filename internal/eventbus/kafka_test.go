package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaBus_Publish(t *testing.T) {
	t.Parallel()

	t.Run("keys by alert and tags headers", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		bus := NewKafkaBus(w)

		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, bus.Publish(context.Background(), NewEvent(AlertEscalated, "h1", "a1", nil, at)))

		require.Len(t, w.msgs, 1)
		msg := w.msgs[0]
		assert.Equal(t, "a1", string(msg.Key))
		assert.Equal(t, at, msg.Time)
		assert.Contains(t, msg.Headers, kafka.Header{Key: "event-type", Value: []byte("alert.escalated")})
		assert.Contains(t, msg.Headers, kafka.Header{Key: "hospital-id", Value: []byte("h1")})

		ev, err := decode(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, "a1", ev.AlertID)
	})

	t.Run("keys by hospital when there is no alert", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		bus := NewKafkaBus(w)

		require.NoError(t, bus.Publish(context.Background(), NewEvent(InAppNotification, "h1", "", nil, time.Now())))
		assert.Equal(t, "h1", string(w.msgs[0].Key))
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		t.Parallel()
		bus := NewKafkaBus(&fakeWriter{err: errors.New("leader not available")})
		err := bus.Publish(context.Background(), NewEvent(AlertRaised, "h1", "a1", nil, time.Now()))
		assert.ErrorIs(t, err, ErrPublishFailed)
	})

	t.Run("close closes the writer", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		require.NoError(t, NewKafkaBus(w).Close())
		assert.True(t, w.closed)
	})
}

func TestNewKafkaWriter(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaWriter(KafkaConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	w, err := NewKafkaWriter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"})
	require.NoError(t, err)
	assert.Equal(t, "events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
