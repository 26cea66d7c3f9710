package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/errors"
)

// Producer writes lifecycle events keyed by request id, so one request's
// events stay on one partition in commit order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, event *entity.LifecycleEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Internal("Failed to encode lifecycle event", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		return errors.DependencyUnavailable("Event stream unavailable", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
