package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error)
	GetMessageForUpdate(ctx context.Context, messageID uuid.UUID) (models.Message, error)
	UpdateContent(ctx context.Context, messageID uuid.UUID, content string, updatedAt time.Time) (models.Message, error)
	MarkRead(ctx context.Context, messageID uuid.UUID) error
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	ListConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	ListMessagesForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error)
	ListDescendants(ctx context.Context, rootID uuid.UUID, levels int) ([]models.Message, error)
	ListUnread(ctx context.Context, receiverID uuid.UUID) ([]models.UnreadMessage, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db Queryer
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db Queryer) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, parent_id, content, edited, read, created_at, updated_at`

// CreateMessage stores a message; the caller assigns id and timestamps.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, receiver_id, parent_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.ParentID, msg.Content, msg.CreatedAt, msg.UpdatedAt).
		StructScan(&created)
	return created, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
}

// GetMessageForUpdate retrieves a message and locks its row until the
// surrounding transaction ends.
func (r *MessageRepo) GetMessageForUpdate(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID)
}

func (r *MessageRepo) get(ctx context.Context, query string, messageID uuid.UUID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateContent writes new content and flags the message as edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID uuid.UUID, content string, updatedAt time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, edited=TRUE, updated_at=$3 WHERE id=$1 RETURNING `+messageColumns,
		messageID, content, updatedAt).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead flags a message as read by its receiver.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID uuid.UUID) error {
	return expectOne(r.db.ExecContext(ctx, `UPDATE messages SET read=TRUE WHERE id=$1`, messageID))
}

// DeleteMessage removes a message; replies, notification and history cascade.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID))
}

// ListConversationMessages returns a conversation's messages in send order.
func (r *MessageRepo) ListConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`, conversationID)
	return msgs, err
}

// ListMessagesForUser returns messages of every conversation the user is in.
func (r *MessageRepo) ListMessagesForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.parent_id, m.content, m.edited, m.read, m.created_at, m.updated_at
        FROM messages m
        INNER JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id
        WHERE cp.user_id=$1
        ORDER BY m.created_at ASC, m.id ASC`, userID)
	return msgs, err
}

// ListDescendants returns the replies below rootID down to the given number
// of levels, excluding the root itself. The level cap also ends the walk on a
// cyclic parent chain.
func (r *MessageRepo) ListDescendants(ctx context.Context, rootID uuid.UUID, levels int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `WITH RECURSIVE thread AS (
            SELECT `+messageColumns+`, 1 AS depth FROM messages WHERE parent_id=$1
            UNION ALL
            SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.parent_id, m.content, m.edited, m.read, m.created_at, m.updated_at, t.depth + 1
            FROM messages m INNER JOIN thread t ON m.parent_id = t.id
            WHERE t.depth < $2
        )
        SELECT `+messageColumns+` FROM thread ORDER BY created_at ASC, id ASC`, rootID, levels)
	return msgs, err
}

// ListUnread returns the list-view projection of messages addressed to the
// receiver that have not been read.
func (r *MessageRepo) ListUnread(ctx context.Context, receiverID uuid.UUID) ([]models.UnreadMessage, error) {
	msgs := []models.UnreadMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, sender_id, receiver_id, content, created_at
        FROM messages WHERE receiver_id=$1 AND read = FALSE ORDER BY created_at ASC, id ASC`, receiverID)
	return msgs, err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
