package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/access"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil)
	convID := uuid.New()

	hub.AddClient(convID, nil, ConnInfo{})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected conversation room to be created")
	}
	assert.Equal(t, 1, hub.ClientCount(convID))

	hub.RemoveClient(convID, nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected conversation room to be removed")
	}
}

func TestHubBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.Broadcast(context.Background(), models.Event{Type: models.EventMessageCreated, ConversationID: uuid.New()}))
}

type wsFixture struct {
	hub      *Hub
	verifier *mocks.TokenVerifierMock
	lookup   *mocks.ParticipationCheckerMock
	server   *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &wsFixture{
		hub:      NewHub(nil),
		verifier: new(mocks.TokenVerifierMock),
		lookup:   new(mocks.ParticipationCheckerMock),
	}
	handler := NewConversationWebSocketHandler(ctx, f.hub, f.verifier, f.lookup, nil)
	r := gin.New()
	r.GET("/ws/conversations/:conversation_id", handler.Handle)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) url(path string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + path
}

func TestConversationWebSocketRejectsInvalidToken(t *testing.T) {
	f := newWSFixture(t)
	f.verifier.On("Verify", "bad").Return(nil, assert.AnError).Once()

	_, resp, err := websocket.DefaultDialer.Dial(f.url("/ws/conversations/"+uuid.NewString()+"?token=bad"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationWebSocketRejectsNonParticipant(t *testing.T) {
	f := newWSFixture(t)
	convID := uuid.New()
	actor := access.Actor{UserID: uuid.New(), Role: models.RoleGuest}
	f.verifier.On("Verify", "tok").Return(actor, nil)
	f.lookup.On("GetConversation", mock.Anything, actor, convID).Return(nil, access.ErrPermissionDenied).Once()

	header := http.Header{"Authorization": []string{"Bearer tok"}}
	_, resp, err := websocket.DefaultDialer.Dial(f.url("/ws/conversations/"+convID.String()), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	missing := uuid.New()
	f.lookup.On("GetConversation", mock.Anything, actor, missing).Return(nil, repositories.ErrConversationNotFound).Once()
	_, resp, err = websocket.DefaultDialer.Dial(f.url("/ws/conversations/"+missing.String()), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversationWebSocketReceivesBroadcast(t *testing.T) {
	f := newWSFixture(t)
	convID := uuid.New()
	actor := access.Actor{UserID: uuid.New(), Role: models.RoleGuest}
	f.verifier.On("Verify", "tok").Return(actor, nil).Once()
	f.lookup.On("GetConversation", mock.Anything, actor, convID).Return(models.Conversation{ID: convID}, nil).Once()

	conn, _, err := websocket.DefaultDialer.Dial(f.url("/ws/conversations/"+convID.String()+"?token=tok"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.ClientCount(convID) == 1 }, time.Second, 10*time.Millisecond)

	msgID := uuid.New()
	require.NoError(t, f.hub.Broadcast(context.Background(), models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: convID,
		MessageID:      msgID,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var got models.Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, models.EventMessageCreated, got.Type)
	assert.Equal(t, msgID, got.MessageID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return f.hub.ClientCount(convID) == 0 }, time.Second, 10*time.Millisecond)
}
