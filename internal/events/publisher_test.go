package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/planner/domain"
)

type writerStub struct {
	topic string
	msgs  []kafka.Message
	err   error
}

func (w *writerStub) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.topic = topic
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublisherWritesKeyedMessages(t *testing.T) {
	w := &writerStub{}
	p := NewPublisher(w, "update_events", nil)
	at := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	u := domain.Update{ID: "water-2024-01-01", UserID: "user-1", ActivityID: "water", Date: domain.NewDate(2024, time.January, 1), Status: domain.UpdateMissed}

	require.NoError(t, p.Publish(context.Background(), domain.NewUpdateEvent(domain.EventUpdateMissed, u, at)))

	assert.Equal(t, "update_events", w.topic)
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "user-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, domain.EventUpdateMissed, string(msg.Headers[0].Value))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "2024-01-01", body["date"])
	assert.Equal(t, "missed", body["status"])
}

func TestPublisherSkipsEmptyBatch(t *testing.T) {
	w := &writerStub{err: errors.New("must not be called")}
	assert.NoError(t, NewPublisher(w, "t", nil).Publish(context.Background()))
}

func TestPublisherWrapsWriteError(t *testing.T) {
	cause := errors.New("leader not available")
	p := NewPublisher(&writerStub{err: cause}, "t", nil)

	err := p.Publish(context.Background(), domain.UpdateEvent{Type: domain.EventUpdateCreated, UserID: "u"})
	assert.ErrorIs(t, err, cause)
}
