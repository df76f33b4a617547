package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"messaging-service/internal/models"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationExists   = errors.New("message already notified")
)

// NotificationRepository persists notifications derived from messages.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	GetNotification(ctx context.Context, notificationID uuid.UUID) (models.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID uuid.UUID) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db Queryer
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db Queryer) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, sender_id, message_id, recipient_id, read, created_at`

// CreateNotification inserts a notification. A message can be notified once.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var created models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (id, sender_id, message_id, recipient_id, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+notificationColumns,
		n.ID, n.SenderID, n.MessageID, n.RecipientID, n.CreatedAt).StructScan(&created)
	if isUniqueViolation(err) {
		return models.Notification{}, ErrNotificationExists
	}
	return created, err
}

// GetNotification fetches a notification by id.
func (r *NotificationRepo) GetNotification(ctx context.Context, notificationID uuid.UUID) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `SELECT `+notificationColumns+` FROM notifications WHERE recipient_id=$1 ORDER BY created_at DESC, id ASC`, recipientID)
	return list, err
}

// MarkNotificationRead flags a notification as read.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, notificationID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, notificationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
