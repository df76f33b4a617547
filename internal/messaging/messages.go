package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// CreateMessageInput carries a new message. ReceiverID may be omitted in a
// two-party conversation.
type CreateMessageInput struct {
	ConversationID uuid.UUID
	ReceiverID     *uuid.UUID
	ParentID       *uuid.UUID
	Content        string
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("content", "content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", invalid("content", fmt.Sprintf("content must be at most %d characters", maxContentLength))
	}
	return content, nil
}

func resolveReceiver(actor access.Actor, conv models.Conversation, receiverID *uuid.UUID) (uuid.UUID, error) {
	if receiverID != nil {
		if *receiverID == actor.UserID {
			return uuid.Nil, invalid("receiver_id", "receiver must differ from sender")
		}
		if !conv.HasParticipant(*receiverID) {
			return uuid.Nil, invalid("receiver_id", "receiver must be a participant of the conversation")
		}
		return *receiverID, nil
	}
	if len(conv.ParticipantIDs) != 2 {
		return uuid.Nil, invalid("receiver_id", "receiver_id is required in group conversations")
	}
	for _, id := range conv.ParticipantIDs {
		if id != actor.UserID {
			return id, nil
		}
	}
	return uuid.Nil, invalid("receiver_id", "conversation has no other participant")
}

// CreateMessage stores a message and its notification in one transaction.
func (s *Service) CreateMessage(ctx context.Context, actor access.Actor, in CreateMessageInput) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.CreateMessage")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Message{}, err
	}
	content, err := normalizeContent(in.Content)
	if err != nil {
		return models.Message{}, err
	}

	var (
		msg          models.Message
		notification models.Notification
	)
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		conv, err := s.participantConversation(ctx, tx, actor, in.ConversationID)
		if err != nil {
			return err
		}
		receiverID, err := resolveReceiver(actor, conv, in.ReceiverID)
		if err != nil {
			return err
		}
		var parentID *uuid.UUID
		if in.ParentID != nil {
			id := *in.ParentID
			parentID = &id
			parent, err := tx.Messages().GetMessage(ctx, id)
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return invalid("parent_id", "parent message does not exist")
			}
			if err != nil {
				return err
			}
			if parent.ConversationID != conv.ID {
				return invalid("parent_id", "parent message belongs to another conversation")
			}
		}

		now := s.now()
		msg, err = tx.Messages().CreateMessage(ctx, models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			SenderID:       actor.UserID,
			ReceiverID:     receiverID,
			ParentID:       parentID,
			Content:        content,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		notification, err = s.recordNotification(ctx, tx, msg)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	s.logger.Debug("message created",
		zap.String("message_id", msg.ID.String()),
		zap.String("conversation_id", msg.ConversationID.String()))
	s.emit(ctx, models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		UserID:         msg.SenderID,
		Message:        &msg,
		Notification:   &notification,
	})
	return msg, nil
}

// recordNotification derives the single notification for a new message.
func (s *Service) recordNotification(ctx context.Context, tx repositories.Store, msg models.Message) (models.Notification, error) {
	n, err := tx.Notifications().CreateNotification(ctx, models.Notification{
		ID:          uuid.New(),
		SenderID:    msg.SenderID,
		MessageID:   msg.ID,
		RecipientID: msg.ReceiverID,
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		return models.Notification{}, fmt.Errorf("record notification: %w", err)
	}
	return n, nil
}

// maybeRecordHistory snapshots current when newContent differs from it.
// current must have been read under the row lock.
func (s *Service) maybeRecordHistory(ctx context.Context, tx repositories.Store, current models.Message, editorID uuid.UUID, newContent string) (*models.MessageHistory, error) {
	if current.Content == newContent {
		return nil, nil
	}
	h, err := tx.History().CreateHistory(ctx, models.MessageHistory{
		ID:         uuid.New(),
		MessageID:  current.ID,
		EditedBy:   editorID,
		OldContent: current.Content,
		EditedAt:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	return &h, nil
}

// UpdateMessageContent edits a message owned by the actor. Unchanged content
// is a no-op.
func (s *Service) UpdateMessageContent(ctx context.Context, actor access.Actor, messageID uuid.UUID, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.UpdateMessageContent")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Message{}, err
	}
	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, err
	}

	var (
		msg     models.Message
		history *models.MessageHistory
	)
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		current, err := tx.Messages().GetMessageForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(actor, current); err != nil {
			return err
		}
		history, err = s.maybeRecordHistory(ctx, tx, current, actor.UserID, content)
		if err != nil {
			return err
		}
		if history == nil {
			msg = current
			return nil
		}
		msg, err = tx.Messages().UpdateContent(ctx, messageID, content, s.now())
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	if history != nil {
		s.emit(ctx, models.Event{
			Type:           models.EventMessageEdited,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			UserID:         actor.UserID,
			Message:        &msg,
			History:        history,
		})
	}
	return msg, nil
}

// DeleteMessage removes a message owned by the actor along with its replies.
func (s *Service) DeleteMessage(ctx context.Context, actor access.Actor, messageID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "messaging.DeleteMessage")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		msg, err = tx.Messages().GetMessageForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(actor, msg); err != nil {
			return err
		}
		return tx.Messages().DeleteMessage(ctx, messageID)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, models.Event{
		Type:           models.EventMessageDeleted,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		UserID:         actor.UserID,
	})
	return nil
}

// GetMessage returns a message from a conversation the actor participates in.
func (s *Service) GetMessage(ctx context.Context, actor access.Actor, messageID uuid.UUID) (models.Message, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Message{}, err
	}
	return s.visibleMessage(ctx, s.store, actor, messageID)
}

func (s *Service) visibleMessage(ctx context.Context, store repositories.Store, actor access.Actor, messageID uuid.UUID) (models.Message, error) {
	msg, err := store.Messages().GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := s.participantConversation(ctx, store, actor, msg.ConversationID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListConversationMessages returns a conversation's messages oldest first.
func (s *Service) ListConversationMessages(ctx context.Context, actor access.Actor, conversationID uuid.UUID) ([]models.Message, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, s.store, actor, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages().ListConversationMessages(ctx, conversationID)
}

// ListMessages returns messages across every conversation of the actor.
func (s *Service) ListMessages(ctx context.Context, actor access.Actor) ([]models.Message, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Messages().ListMessagesForUser(ctx, actor.UserID)
}

// MessageHistory returns the prior versions of a message, oldest first.
func (s *Service) MessageHistory(ctx context.Context, actor access.Actor, messageID uuid.UUID) ([]models.MessageHistory, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if _, err := s.visibleMessage(ctx, s.store, actor, messageID); err != nil {
		return nil, err
	}
	return s.store.History().ListForMessage(ctx, messageID)
}

// MarkMessageRead flags a message as read by its receiver.
func (s *Service) MarkMessageRead(ctx context.Context, actor access.Actor, messageID uuid.UUID) (models.Message, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		msg, err = tx.Messages().GetMessageForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if err := access.RequireReceiver(actor, msg); err != nil {
			return err
		}
		if msg.Read {
			return nil
		}
		if err := tx.Messages().MarkRead(ctx, messageID); err != nil {
			return err
		}
		msg.Read = true
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}

	s.emit(ctx, models.Event{
		Type:           models.EventMessageRead,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		UserID:         actor.UserID,
	})
	return msg, nil
}
