package repositories

import (
	"context"

	"github.com/google/uuid"

	"messaging-service/internal/models"
)

// HistoryRepository stores prior message contents.
type HistoryRepository interface {
	CreateHistory(ctx context.Context, h models.MessageHistory) (models.MessageHistory, error)
	ListForMessage(ctx context.Context, messageID uuid.UUID) ([]models.MessageHistory, error)
}

// HistoryRepo is a sqlx implementation of HistoryRepository.
type HistoryRepo struct {
	db Queryer
}

// NewHistoryRepo constructs a HistoryRepo.
func NewHistoryRepo(db Queryer) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// CreateHistory records one snapshot.
func (r *HistoryRepo) CreateHistory(ctx context.Context, h models.MessageHistory) (models.MessageHistory, error) {
	var created models.MessageHistory
	err := r.db.QueryRowxContext(ctx, `INSERT INTO message_history (id, message_id, edited_by, old_content, edited_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, message_id, edited_by, old_content, edited_at`,
		h.ID, h.MessageID, h.EditedBy, h.OldContent, h.EditedAt).StructScan(&created)
	return created, err
}

// ListForMessage returns a message's snapshots, oldest first.
func (r *HistoryRepo) ListForMessage(ctx context.Context, messageID uuid.UUID) ([]models.MessageHistory, error) {
	list := []models.MessageHistory{}
	err := r.db.SelectContext(ctx, &list, `SELECT id, message_id, edited_by, old_content, edited_at
        FROM message_history WHERE message_id=$1 ORDER BY edited_at ASC, id ASC`, messageID)
	return list, err
}
