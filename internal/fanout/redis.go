// Package fanout relays conversation events between service instances over
// Redis pub/sub so websocket clients connected anywhere receive them.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// LocalBroadcaster delivers an event to the clients of this instance.
type LocalBroadcaster interface {
	Broadcast(ctx context.Context, event models.Event) error
}

// RedisRelay publishes events to a Redis channel and replays every event on
// that channel, including its own, into the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   LocalBroadcaster
	logger  *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, local LocalBroadcaster, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, channel: channel, local: local, logger: logger.Named("fanout")}
}

// Broadcast publishes the event for all instances.
func (r *RedisRelay) Broadcast(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards channel messages to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.logger.Info("redis relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("dropping malformed relay payload", zap.Error(err))
				continue
			}
			if err := r.local.Broadcast(ctx, event); err != nil {
				observability.IncFanoutError("local")
				r.logger.Warn("local broadcast failed", zap.Error(err))
			}
		}
	}
}
