package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(token string) (access.Actor, error)
}

// ConversationLookup returns a conversation only when the actor participates.
type ConversationLookup interface {
	GetConversation(ctx context.Context, actor access.Actor, conversationID uuid.UUID) (models.Conversation, error)
}

// ConversationWebSocketHandler upgrades participants into a conversation room.
type ConversationWebSocketHandler struct {
	hub           *Hub
	verifier      TokenVerifier
	conversations ConversationLookup
	logger        *zap.Logger
	baseCtx       context.Context
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
// Connections are tied to baseCtx and close when it is cancelled.
func NewConversationWebSocketHandler(baseCtx context.Context, hub *Hub, verifier TokenVerifier, conversations ConversationLookup, logger *zap.Logger) *ConversationWebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationWebSocketHandler{
		hub:           hub,
		verifier:      verifier,
		conversations: conversations,
		logger:        logger.Named("ws"),
		baseCtx:       baseCtx,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle verifies the caller and registers the upgraded connection.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	actor, err := h.verifier.Verify(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if _, err := h.conversations.GetConversation(ctx, actor, conversationID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, access.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		default:
			h.logger.Error("websocket participation check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      actor.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)
	observability.IncWSActive()
	publishLifecycle(ctx, conversationID, info, "ws_connect", "")

	go h.readLoop(conversationID, conn, info)
}

// readLoop discards inbound frames until the peer or the server goes away.
func (h *ConversationWebSocketHandler) readLoop(conversationID uuid.UUID, conn *websocket.Conn, info ConnInfo) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-h.baseCtx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	pubCtx := context.WithoutCancel(h.baseCtx)
	var closeReason string
	defer func() {
		h.hub.RemoveClient(conversationID, conn)
		observability.DecWSActive()
		publishLifecycle(pubCtx, conversationID, info, "ws_disconnect", closeReason)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycle(pubCtx, conversationID, info, "ws_error", closeReason)
			}
			return
		}
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}
