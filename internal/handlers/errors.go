package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/access"
	"messaging-service/internal/messaging"
	"messaging-service/internal/repositories"
)

// respondError maps service errors onto HTTP responses. Unknown errors are
// logged and hidden behind a fixed message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *messaging.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, repositories.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	case errors.Is(err, access.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
	case errors.Is(err, access.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not have permission to perform this action"})
	case errors.Is(err, repositories.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, messaging.ErrThreadTooDeep), errors.Is(err, messaging.ErrThreadCycle):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// uuidParam parses a path parameter, writing 400 on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
