package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageHistory snapshots the content a message had before an edit.
type MessageHistory struct {
	ID         uuid.UUID `db:"id" json:"history_id"`
	MessageID  uuid.UUID `db:"message_id" json:"message_id"`
	EditedBy   uuid.UUID `db:"edited_by" json:"edited_by"`
	OldContent string    `db:"old_content" json:"old_content"`
	EditedAt   time.Time `db:"edited_at" json:"edited_at"`
}
