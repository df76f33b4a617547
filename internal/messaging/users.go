package messaging

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const minPasswordLength = 8

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	Email           string
	Username        string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

func (in RegisterInput) validate() error {
	fields := map[string]string{}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "a valid email address is required"
	}
	if strings.TrimSpace(in.Username) == "" {
		fields["username"] = "username is required"
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	} else if in.Password != in.PasswordConfirm {
		fields["password"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// RegisterUser adds a user to the directory with the guest role.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (models.User, error) {
	ctx, span := tracer.Start(ctx, "messaging.RegisterUser")
	defer span.End()

	if err := in.validate(); err != nil {
		return models.User{}, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Users().CreateUser(ctx, models.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     strings.TrimSpace(in.Username),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Role:         models.RoleGuest,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// ListUsers returns the user directory.
func (s *Service) ListUsers(ctx context.Context, actor access.Actor) ([]models.User, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Users().ListUsers(ctx)
}

// DeleteUser removes a user and everything that cascades from them: sent and
// received messages, authored edit history, notifications and participation.
func (s *Service) DeleteUser(ctx context.Context, actor access.Actor, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "messaging.DeleteUser")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().GetUser(ctx, userID); err != nil {
			return err
		}
		if err := access.RequireSelfOrAdmin(actor, userID); err != nil {
			return err
		}
		return tx.Users().DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted", zap.String("user_id", userID.String()), zap.String("actor_id", actor.UserID.String()))
	s.emit(ctx, models.Event{Type: models.EventUserDeleted, UserID: userID})
	return nil
}
