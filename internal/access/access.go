// Package access holds the authorization predicates applied to conversation
// and message operations. Callers compose them explicitly per operation.
package access

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"messaging-service/internal/models"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is a PermissionDenied raised for anonymous actors.
	ErrUnauthenticated = fmt.Errorf("%w: authentication required", ErrPermissionDenied)
)

// Actor is the identity performing an operation. The zero value is anonymous.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{}
}

func IsAuthenticated(a Actor) bool {
	return a.UserID != uuid.Nil
}

func IsAdmin(a Actor) bool {
	return IsAuthenticated(a) && a.Role == models.RoleAdmin
}

func IsParticipant(a Actor, conv models.Conversation) bool {
	return IsAuthenticated(a) && conv.HasParticipant(a.UserID)
}

func IsOwner(a Actor, msg models.Message) bool {
	return IsAuthenticated(a) && msg.SenderID == a.UserID
}

func IsReceiver(a Actor, msg models.Message) bool {
	return IsAuthenticated(a) && msg.ReceiverID == a.UserID
}

// RequireAuthenticated rejects anonymous actors.
func RequireAuthenticated(a Actor) error {
	if !IsAuthenticated(a) {
		return ErrUnauthenticated
	}
	return nil
}

// RequireParticipant rejects actors outside the conversation.
func RequireParticipant(a Actor, conv models.Conversation) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if !IsParticipant(a, conv) {
		return fmt.Errorf("%w: not a participant of this conversation", ErrPermissionDenied)
	}
	return nil
}

// RequireOwner rejects actors that did not send the message.
func RequireOwner(a Actor, msg models.Message) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if !IsOwner(a, msg) {
		return fmt.Errorf("%w: only the sender may modify this message", ErrPermissionDenied)
	}
	return nil
}

// RequireReceiver rejects actors the message is not addressed to.
func RequireReceiver(a Actor, msg models.Message) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if !IsReceiver(a, msg) {
		return fmt.Errorf("%w: message is not addressed to you", ErrPermissionDenied)
	}
	return nil
}

// RequireSelfOrAdmin guards operations on a user account.
func RequireSelfOrAdmin(a Actor, userID uuid.UUID) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if a.UserID != userID && !IsAdmin(a) {
		return fmt.Errorf("%w: cannot act on another user", ErrPermissionDenied)
	}
	return nil
}
