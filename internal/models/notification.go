package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is derived from a newly created message.
type Notification struct {
	ID          uuid.UUID `db:"id" json:"notification_id"`
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	MessageID   uuid.UUID `db:"message_id" json:"message_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Read        bool      `db:"read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
