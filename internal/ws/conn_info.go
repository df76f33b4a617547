package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo describes who holds a websocket connection and where it came from.
type ConnInfo struct {
	ConnID      string
	UserID      uuid.UUID
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
