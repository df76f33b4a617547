package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted after a write commits.
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventMessageRead    = "message.read"
	EventUserDeleted    = "user.deleted"
)

// Event is broadcast over websockets and published to the broker.
type Event struct {
	Type           string          `json:"type"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	MessageID      uuid.UUID       `json:"message_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Message        *Message        `json:"message,omitempty"`
	Notification   *Notification   `json:"notification,omitempty"`
	History        *MessageHistory `json:"history,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
