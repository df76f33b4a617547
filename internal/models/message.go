package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a directed message inside a conversation. ParentID links replies
// into a thread; a parent always predates its children.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"message_id"`
	ConversationID uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID  `db:"sender_id" json:"sender_id"`
	ReceiverID     uuid.UUID  `db:"receiver_id" json:"receiver_id"`
	ParentID       *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	Content        string     `db:"content" json:"content"`
	Edited         bool       `db:"edited" json:"edited"`
	Read           bool       `db:"read" json:"read"`
	CreatedAt      time.Time  `db:"created_at" json:"timestamp"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// UnreadMessage is the list-view projection of an unread message.
type UnreadMessage struct {
	ID         uuid.UUID `db:"id" json:"message_id"`
	SenderID   uuid.UUID `db:"sender_id" json:"sender_id"`
	ReceiverID uuid.UUID `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
}

// ThreadNode is a message together with its nested replies.
type ThreadNode struct {
	Message Message       `json:"message"`
	Replies []*ThreadNode `json:"replies"`
}

// Depth returns the length of the longest reply chain starting at n,
// counting n itself.
func (n *ThreadNode) Depth() int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, r := range n.Replies {
		if d := r.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
