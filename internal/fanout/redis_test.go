package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func TestRedisRelayRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	local := new(mocks.BroadcasterMock)
	relay := NewRedisRelay(client, "messaging:events", local, nil)

	event := models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: uuid.New(),
		MessageID:      uuid.New(),
		OccurredAt:     time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	delivered := make(chan struct{})
	local.On("Broadcast", mock.Anything, event).Return(nil).Run(func(mock.Arguments) { close(delivered) }).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(context.Background(), "messaging:events").Result()
		return err == nil && n["messaging:events"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, relay.Broadcast(context.Background(), event))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed to the local hub")
	}

	cancel()
	assert.NoError(t, <-done)
	local.AssertExpectations(t)
}

func TestRedisRelayBroadcastFailsWhenRedisDown(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	relay := NewRedisRelay(client, "messaging:events", new(mocks.BroadcasterMock), nil)
	err := relay.Broadcast(context.Background(), models.Event{Type: models.EventMessageDeleted})
	assert.Error(t, err)
}
