package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/logger"
)

// Delivery is one decoded event. Ack commits its offset.
type Delivery struct {
	Event  *entity.LifecycleEvent
	Offset int64
	Ack    func(ctx context.Context) error
}

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			CommitInterval: 0,
		}),
	}
}

// Consume fetches until ctx is done. Undecodable messages are committed and
// skipped.
func (c *Consumer) Consume(ctx context.Context, out chan<- Delivery) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var event entity.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("Kafka: skipping malformed event at %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Error("Kafka: commit failed: %v", err)
			}
			continue
		}

		m := msg
		delivery := Delivery{
			Event:  &event,
			Offset: msg.Offset,
			Ack: func(ctx context.Context) error {
				return c.reader.CommitMessages(ctx, m)
			},
		}
		select {
		case out <- delivery:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
