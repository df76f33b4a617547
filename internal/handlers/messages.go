package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/telemetry"
)

// MessageHandler serves the top-level message resources.
type MessageHandler struct {
	service *messaging.Service
	audit   *telemetry.AuditEmitter
	logger  *zap.Logger
}

func NewMessageHandler(service *messaging.Service, emitter *telemetry.AuditEmitter, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{service: service, audit: emitter, logger: logger}
}

type messageRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	ReceiverID     *uuid.UUID `json:"receiver_id"`
	ParentID       *uuid.UUID `json:"parent_id"`
	Content        string     `json:"content" binding:"required"`
}

func createMessage(c *gin.Context, service *messaging.Service, logger *zap.Logger, req messageRequest) {
	if req.ConversationID == nil {
		badRequest(c, errors.New("conversation_id is required"))
		return
	}
	msg, err := service.CreateMessage(c.Request.Context(), middleware.ActorFromContext(c), messaging.CreateMessageInput{
		ConversationID: *req.ConversationID,
		ReceiverID:     req.ReceiverID,
		ParentID:       req.ParentID,
		Content:        req.Content,
	})
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// CreateMessage sends a message into the conversation named in the body.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	createMessage(c, h.service, h.logger, req)
}

// ListMessages returns messages across the caller's conversations.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.service.ListMessages(c.Request.Context(), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.service.GetMessage(c.Request.Context(), middleware.ActorFromContext(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// UpdateMessage edits the content of the caller's own message.
func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.service.UpdateMessageContent(c.Request.Context(), middleware.ActorFromContext(c), messageID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	if err := h.service.DeleteMessage(c.Request.Context(), middleware.ActorFromContext(c), messageID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	audit(c, h.audit, "INFO", "message "+messageID.String()+" deleted")
	c.Status(http.StatusNoContent)
}

// GetThread returns the nested reply tree under a message.
func (h *MessageHandler) GetThread(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	thread, err := h.service.GetThread(c.Request.Context(), middleware.ActorFromContext(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// History lists prior versions of a message.
func (h *MessageHandler) History(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	history, err := h.service.MessageHistory(c.Request.Context(), middleware.ActorFromContext(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// MarkRead flags a message addressed to the caller as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.service.MarkMessageRead(c.Request.Context(), middleware.ActorFromContext(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
