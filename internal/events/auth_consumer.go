package events

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/kafka"
)

// Revoker applies a revocation announced by another instance.
type Revoker interface {
	ApplyRevocation(tokenID string, expiresAt time.Time)
}

// AuthEventConsumer listens to auth events and keeps the local revocation
// set in step with the other server instances.
type AuthEventConsumer struct {
	consumer *kafka.Consumer
	revoker  Revoker
	logger   *zap.Logger
}

// NewAuthEventConsumer creates a consumer in its own group, so every
// instance sees every revocation.
func NewAuthEventConsumer(brokers []string, groupID string, revoker Revoker, logger *zap.Logger) *AuthEventConsumer {
	return &AuthEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicAuthEvents, logger),
		revoker:  revoker,
		logger:   logger,
	}
}

// Start blocks until the context is cancelled.
func (c *AuthEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.HandleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *AuthEventConsumer) Close() error {
	return c.consumer.Close()
}

// HandleMessage processes one message. Malformed messages are dropped.
func (c *AuthEventConsumer) HandleMessage(_ context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from auth topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil
	}

	switch cloudEvent.Type {
	case AuthTokenRevoked:
		var evt TokenRevokedEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse TokenRevokedEvent data", zap.Error(err))
			return nil
		}
		if evt.TokenID == "" {
			return nil
		}
		c.revoker.ApplyRevocation(evt.TokenID, evt.ExpiresAt)
		c.logger.Debug("applied remote revocation", zap.String("user_id", evt.UserID.String()))
		return nil
	default:
		c.logger.Debug("ignoring unhandled auth event type", zap.String("type", cloudEvent.Type))
		return nil
	}
}
