package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"direct-chat/internal/rabbitmq"
	"direct-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints: the event publisher state and
// a chat-scoped audit trigger for checking the audit pipeline end to end.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, events rabbitmq.Publisher, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"mode":   rabbitmq.PublisherMode(events),
			"reason": rabbitmq.PublisherNoopReason(events),
		})
	})

	router.POST("/debug/chats/:chat_id/audit", func(c *gin.Context) {
		chatID, ok := chatIDParam(c)
		if !ok {
			return
		}
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		text := c.DefaultQuery("text", "audit test")
		emitter.EmitForChat(c.Request.Context(), "INFO", text, requestIDFromContext(c), userIDFromContext(c), chatID)
		c.JSON(http.StatusAccepted, gin.H{"chat_id": chatID, "request_id": requestIDFromContext(c)})
	})
}
