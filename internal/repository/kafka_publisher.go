package repository

import (
	"context"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	pkgkafka "quantterm/pkg/kafka"
)

// KafkaSignalPublisher emits computed signals to a Kafka topic, keyed by
// symbol so downstream consumers see per-asset ordering.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) drepo.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, sig models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(sig.Symbol), sig)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
