package repository

import (
	"context"
	"fmt"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error
}

// KafkaChangePublisher writes SignalChange events keyed by stock id, so
// one stock's changes stay ordered on a partition.
type KafkaChangePublisher struct {
	p     batchProducer
	topic string
}

func NewKafkaChangePublisher(p *kafka.Producer, topic string) *KafkaChangePublisher {
	return &KafkaChangePublisher{p: p, topic: topic}
}

func (k *KafkaChangePublisher) PublishChanges(ctx context.Context, changes []models.SignalChange) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(changes))
	for i, c := range changes {
		msgs[i] = kafka.Message{Key: []byte(c.StockID), Value: c}
	}
	if err := k.p.PublishBatch(ctx, k.topic, msgs); err != nil {
		return fmt.Errorf("publish changes: %w", err)
	}
	return nil
}

// Close is a no-op: the producer is shared with the log collector.
func (k *KafkaChangePublisher) Close() error { return nil }

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishChanges(context.Context, []models.SignalChange) error { return nil }
func (NoopPublisher) Close() error                                                 { return nil }
