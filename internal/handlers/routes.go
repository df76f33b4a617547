package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/telemetry"
)

// Routes bundles what the REST surface needs.
type Routes struct {
	Service *messaging.Service
	Audit   *telemetry.AuditEmitter
	Logger  *zap.Logger
	// WriteLimit guards message creation. Nil means unlimited.
	WriteLimit gin.HandlerFunc
}

// Register mounts the REST endpoints on r. Authentication middleware must
// already be installed on r.
func (rt Routes) Register(r gin.IRouter) {
	logger := rt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rt.WriteLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	users := NewUserHandler(rt.Service, rt.Audit, logger)
	conversations := NewConversationHandler(rt.Service, logger)
	messages := NewMessageHandler(rt.Service, rt.Audit, logger)
	inbox := NewInboxHandler(rt.Service, logger)

	r.POST("/users", users.Register)
	r.GET("/users", users.ListUsers)
	r.DELETE("/users/:user_id", users.DeleteUser)

	r.POST("/conversations", conversations.CreateConversation)
	r.GET("/conversations", conversations.ListConversations)
	r.GET("/conversations/:conversation_id", conversations.GetConversation)
	r.GET("/conversations/:conversation_id/messages", conversations.ListMessages)
	r.POST("/conversations/:conversation_id/messages", limit, conversations.PostMessage)

	r.GET("/messages", messages.ListMessages)
	r.POST("/messages", limit, messages.CreateMessage)
	r.GET("/messages/:message_id", messages.GetMessage)
	r.PATCH("/messages/:message_id", messages.UpdateMessage)
	r.DELETE("/messages/:message_id", messages.DeleteMessage)
	r.GET("/messages/:message_id/thread", messages.GetThread)
	r.GET("/messages/:message_id/history", messages.History)
	r.POST("/messages/:message_id/read", messages.MarkRead)

	r.GET("/inbox/unread", inbox.Unread)
	r.GET("/inbox/notifications", inbox.Notifications)
	r.POST("/notifications/:notification_id/read", inbox.MarkNotificationRead)
}
