package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
)

// InboxHandler serves the caller's unread messages and notifications.
type InboxHandler struct {
	service *messaging.Service
	logger  *zap.Logger
}

func NewInboxHandler(service *messaging.Service, logger *zap.Logger) *InboxHandler {
	return &InboxHandler{service: service, logger: logger}
}

func (h *InboxHandler) Unread(c *gin.Context) {
	msgs, err := h.service.UnreadMessages(c.Request.Context(), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *InboxHandler) Notifications(c *gin.Context) {
	notifications, err := h.service.ListNotifications(c.Request.Context(), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *InboxHandler) MarkNotificationRead(c *gin.Context) {
	notificationID, ok := uuidParam(c, "notification_id")
	if !ok {
		return
	}
	n, err := h.service.MarkNotificationRead(c.Request.Context(), middleware.ActorFromContext(c), notificationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
