package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
)

// ConversationHandler manages conversations and their nested messages.
type ConversationHandler struct {
	service *messaging.Service
	logger  *zap.Logger
}

func NewConversationHandler(service *messaging.Service, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, logger: logger}
}

// CreateConversation opens a conversation with the listed users.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), middleware.ActorFromContext(c), req.ParticipantIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// ListConversations returns the caller's conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.service.ListConversations(c.Request.Context(), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation returns one conversation.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	conv, err := h.service.GetConversation(c.Request.Context(), middleware.ActorFromContext(c), conversationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ListMessages returns a conversation's messages oldest first.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	msgs, err := h.service.ListConversationMessages(c.Request.Context(), middleware.ActorFromContext(c), conversationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage sends a message into the conversation in the path.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ConversationID = &conversationID
	createMessage(c, h.service, h.logger, req)
}
