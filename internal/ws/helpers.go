package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/observability"
)

const wsRoutingKey = "ws_events.conversations"

func newConnID() string {
	return uuid.NewString()
}

// publishLifecycle reports a connect, disconnect or error for one connection.
func publishLifecycle(ctx context.Context, conversationID uuid.UUID, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)

	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	ctx = observability.WithRequestID(ctx, info.RequestID)
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":            "conversation",
				"conversation_id": conversationID.String(),
				"event":           event,
				"conn_id":         info.ConnID,
				"duration_ms":     duration,
				"reason":          reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID.String(),
				"device_id": info.DeviceID,
				"ip":        info.IP,
				"trace_id":  info.TraceID,
			},
		},
	})
}
