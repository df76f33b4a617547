package messaging

import (
	"context"

	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// UnreadMessages returns the unread messages addressed to the actor.
func (s *Service) UnreadMessages(ctx context.Context, actor access.Actor) ([]models.UnreadMessage, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Messages().ListUnread(ctx, actor.UserID)
}

// ListNotifications returns the actor's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, actor access.Actor) ([]models.Notification, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Notifications().ListForRecipient(ctx, actor.UserID)
}

// MarkNotificationRead flags a notification addressed to the actor as read.
func (s *Service) MarkNotificationRead(ctx context.Context, actor access.Actor, notificationID uuid.UUID) (models.Notification, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Notification{}, err
	}
	var n models.Notification
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		n, err = tx.Notifications().GetNotification(ctx, notificationID)
		if err != nil {
			return err
		}
		if n.RecipientID != actor.UserID {
			return access.ErrPermissionDenied
		}
		if n.Read {
			return nil
		}
		if err := tx.Notifications().MarkNotificationRead(ctx, notificationID); err != nil {
			return err
		}
		n.Read = true
		return nil
	})
	return n, err
}
