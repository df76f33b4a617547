package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db Queryer
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db Queryer) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateConversation inserts the conversation and its participant rows.
// Participants are deduplicated. Run it inside a transaction.
func (r *ConversationRepo) CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	var created models.Conversation
	if err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (id, created_at) VALUES ($1, $2) RETURNING id, created_at`, conv.ID, conv.CreatedAt).
		Scan(&created.ID, &created.CreatedAt); err != nil {
		return models.Conversation{}, err
	}

	created.ParticipantIDs = dedupeIDs(conv.ParticipantIDs)
	for _, id := range created.ParticipantIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`, created.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return created, nil
}

// GetConversation fetches a conversation with its participants.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if err := r.db.SelectContext(ctx, &conv.ParticipantIDs, `SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, conversationID); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ListConversationsForUser returns conversations that include the user,
// newest first.
func (r *ConversationRepo) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.SelectContext(ctx, &convs, `SELECT c.id, c.created_at FROM conversations c
        INNER JOIN conversation_participants cp ON cp.conversation_id = c.id
        WHERE cp.user_id=$1 ORDER BY c.created_at DESC`, userID)
	if err != nil || len(convs) == 0 {
		return convs, err
	}

	ids := make([]string, 0, len(convs))
	index := make(map[uuid.UUID]int, len(convs))
	for i, c := range convs {
		ids = append(ids, c.ID.String())
		index[c.ID] = i
	}

	var rows []struct {
		ConversationID uuid.UUID `db:"conversation_id"`
		UserID         uuid.UUID `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT conversation_id, user_id FROM conversation_participants
        WHERE conversation_id = ANY($1::uuid[]) ORDER BY user_id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, row := range rows {
		i := index[row.ConversationID]
		convs[i].ParticipantIDs = append(convs[i].ParticipantIDs, row.UserID)
	}
	return convs, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	set := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
