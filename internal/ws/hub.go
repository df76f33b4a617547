package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

const writeTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	info ConnInfo
	// gorilla connections allow a single concurrent writer.
	writeMu sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the websocket rooms of this instance, one per conversation.
type Hub struct {
	rooms  map[uuid.UUID]map[*websocket.Conn]*client
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*websocket.Conn]*client),
		logger: logger.Named("ws"),
	}
}

// AddClient registers a connection in a conversation room.
func (h *Hub) AddClient(conversationID uuid.UUID, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*websocket.Conn]*client)
		h.rooms[conversationID] = room
	}
	room[conn] = &client{conn: conn, info: info}
}

// RemoveClient drops a connection and the room once it is empty.
func (h *Hub) RemoveClient(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// ClientCount reports the connections currently in a room.
func (h *Hub) ClientCount(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Broadcast writes the event to every connection in its conversation room.
// Connections that fail to accept the write are closed and dropped.
func (h *Hub) Broadcast(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[event.ConversationID]))
	for _, c := range h.rooms[event.ConversationID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.logger.Debug("websocket write error",
				zap.String("conn_id", c.info.ConnID),
				zap.String("conversation_id", event.ConversationID.String()),
				zap.Error(err))
			_ = c.conn.Close()
			h.RemoveClient(event.ConversationID, c.conn)
			publishLifecycle(ctx, event.ConversationID, c.info, "ws_error", err.Error())
		}
	}
	return nil
}
