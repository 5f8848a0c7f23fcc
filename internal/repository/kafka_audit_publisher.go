package repository

import (
	"context"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	pkgkafka "SPXEngine/pkg/kafka"
)

// KafkaAuditPublisher emits evaluation records to the audit topic for
// offline model training. Messages are keyed by setup id so all
// evaluations of one setup land in the same partition in order.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates a Kafka-backed audit publisher.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) domrepo.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, rec *models.EvaluationRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.SetupID), rec)
}

func (p *KafkaAuditPublisher) PublishBatch(ctx context.Context, recs []*models.EvaluationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(rec.SetupID),
			Value: rec,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
