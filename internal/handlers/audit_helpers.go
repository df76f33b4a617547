package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/middleware"
	"messaging-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDContextKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	actor := middleware.ActorFromContext(c)
	if !access.IsAuthenticated(actor) {
		return nil
	}
	id := actor.UserID.String()
	return &id
}

// audit records a security relevant action when an emitter is configured.
func audit(c *gin.Context, emitter *telemetry.AuditEmitter, level, text string) {
	emitter.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
