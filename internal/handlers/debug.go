package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		audit(c, emitter, "INFO", "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
