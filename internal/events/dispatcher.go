// Package events delivers committed domain events to the message broker and to
// connected websocket clients.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const publishTimeout = 3 * time.Second

// Publisher sends an event to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Broadcaster pushes an event to the clients of a conversation.
type Broadcaster interface {
	Broadcast(ctx context.Context, event models.Event) error
}

// Dispatcher fans an event out to every configured target. Delivery is best
// effort: failures are logged and counted but never returned.
type Dispatcher struct {
	publisher   Publisher
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewDispatcher(publisher Publisher, broadcaster Broadcaster, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{publisher: publisher, broadcaster: broadcaster, logger: logger.Named("events")}
}

// RoutingKey is the broker routing key for an event type.
func RoutingKey(eventType string) string {
	return "messaging." + eventType
}

func (d *Dispatcher) Emit(ctx context.Context, event models.Event) {
	observability.IncDomainEvent(event.Type)
	// The request may finish before delivery does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, RoutingKey(event.Type), event); err != nil {
			observability.IncFanoutError("amqp")
			d.logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
		}
	}

	if d.broadcaster != nil && event.ConversationID != uuid.Nil {
		if err := d.broadcaster.Broadcast(ctx, event); err != nil {
			observability.IncFanoutError("broadcast")
			d.logger.Warn("event broadcast failed",
				zap.String("type", event.Type),
				zap.String("conversation_id", event.ConversationID.String()),
				zap.Error(err))
		}
	}
}
