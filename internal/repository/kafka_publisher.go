package repository

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
)

// publisher is the slice of pkg/kafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher publishes refresh events keyed by cache and key so
// all events of one asset land on one partition in order.
type KafkaEventPublisher struct {
	producer publisher
	topic    string
}

func NewKafkaEventPublisher(producer publisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishRefresh(ctx context.Context, ev models.RefreshEvent) error {
	if err := p.producer.Publish(ctx, p.topic, eventKey(ev), ev); err != nil {
		return fmt.Errorf("publish refresh %s/%s: %w", ev.Cache, ev.Key, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.producer.Close() }

func eventKey(ev models.RefreshEvent) []byte {
	return []byte(ev.Cache + ":" + ev.Key)
}

var _ drepo.EventPublisher = (*KafkaEventPublisher)(nil)
