package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/kafka"
)

// Publisher emits domain events. Publishing is best effort: failures are
// logged, never returned to the caller of the use case.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, data any)
}

// KafkaPublisher publishes CloudEvents through a kafka.Producer.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, eventType, key string, data any) {
	cloudEvent, err := kafka.NewCloudEvent(Source, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = key

	if err := p.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// Discard drops every event. Used when no brokers are configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, string, any) {}
