package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups messages exchanged between its participants.
type Conversation struct {
	ID             uuid.UUID   `db:"id" json:"conversation_id"`
	ParticipantIDs []uuid.UUID `db:"-" json:"participant_ids"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
