package messaging

import (
	"context"

	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// CreateConversation opens a conversation between the actor and the given
// users. The actor is always added as a participant.
func (s *Service) CreateConversation(ctx context.Context, actor access.Actor, participantIDs []uuid.UUID) (models.Conversation, error) {
	ctx, span := tracer.Start(ctx, "messaging.CreateConversation")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Conversation{}, err
	}

	wanted := map[uuid.UUID]struct{}{actor.UserID: {}}
	ids := []uuid.UUID{actor.UserID}
	for _, id := range participantIDs {
		if _, ok := wanted[id]; ok {
			continue
		}
		wanted[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return models.Conversation{}, invalid("participant_ids", "at least one other participant is required")
	}

	var conv models.Conversation
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		users, err := tx.Users().GetUsers(ctx, ids)
		if err != nil {
			return err
		}
		if len(users) != len(ids) {
			found := make(map[uuid.UUID]struct{}, len(users))
			for _, u := range users {
				found[u.ID] = struct{}{}
			}
			for _, id := range ids {
				if _, ok := found[id]; !ok {
					return invalid("participant_ids", "unknown user "+id.String())
				}
			}
		}

		conv, err = tx.Conversations().CreateConversation(ctx, models.Conversation{
			ID:             uuid.New(),
			ParticipantIDs: ids,
			CreatedAt:      s.now(),
		})
		return err
	})
	return conv, err
}

// ListConversations returns the conversations the actor participates in.
func (s *Service) ListConversations(ctx context.Context, actor access.Actor) ([]models.Conversation, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Conversations().ListConversationsForUser(ctx, actor.UserID)
}

// GetConversation returns a conversation visible to the actor.
func (s *Service) GetConversation(ctx context.Context, actor access.Actor, conversationID uuid.UUID) (models.Conversation, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Conversation{}, err
	}
	return s.participantConversation(ctx, s.store, actor, conversationID)
}

func (s *Service) participantConversation(ctx context.Context, store repositories.Store, actor access.Actor, conversationID uuid.UUID) (models.Conversation, error) {
	conv, err := store.Conversations().GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := access.RequireParticipant(actor, conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}
