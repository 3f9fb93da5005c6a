package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/usecase"
)

// MessageWriter is the subset of KafkaProducer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Publisher writes update events to a Kafka topic keyed by user id, so one
// user's events stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewPublisher(writer MessageWriter, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, topic: topic, logger: logger}
}

var _ usecase.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, events ...domain.UpdateEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.UserID),
			Value: payload,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, p.topic, msgs...); err != nil {
		return fmt.Errorf("write %d events to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("update events published", zap.String("topic", p.topic), zap.Int("events", len(msgs)))
	return nil
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...domain.UpdateEvent) error { return nil }

var _ usecase.EventPublisher = Nop{}
