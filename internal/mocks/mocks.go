package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
)

// BroadcasterMock records conversation broadcasts.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(ctx context.Context, event models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// EventSinkMock records emitted domain events.
type EventSinkMock struct {
	mock.Mock
}

func (m *EventSinkMock) Emit(ctx context.Context, event models.Event) {
	m.Called(ctx, event)
}

// TokenVerifierMock stands in for the JWT verifier.
type TokenVerifierMock struct {
	mock.Mock
}

func (m *TokenVerifierMock) Verify(token string) (access.Actor, error) {
	args := m.Called(token)
	var actor access.Actor
	if val := args.Get(0); val != nil {
		actor = val.(access.Actor)
	}
	return actor, args.Error(1)
}

// ParticipationCheckerMock stands in for the conversation lookup used by the
// websocket handshake.
type ParticipationCheckerMock struct {
	mock.Mock
}

func (m *ParticipationCheckerMock) GetConversation(ctx context.Context, actor access.Actor, conversationID uuid.UUID) (models.Conversation, error) {
	args := m.Called(ctx, actor, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}
