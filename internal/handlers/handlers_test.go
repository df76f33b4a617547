package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/access"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const testUserHeader = "X-Test-User"

type apiFixture struct {
	router    *gin.Engine
	service   *messaging.Service
	publisher *mocks.PublisherMock
	alice     models.User
	bob       models.User
	carol     models.User
}

func plainHash(p string) (string, error) { return "h:" + p, nil }

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{publisher: new(mocks.PublisherMock)}
	f.publisher.On("Publish", mock.Anything, "audit.messaging", mock.Anything).Return(nil).Maybe()
	f.service = messaging.NewService(repositories.NewMemoryStore(), nil, zap.NewNop(), messaging.WithPasswordHasher(plainHash))
	emitter := telemetry.NewAuditEmitter(f.publisher, "audit.messaging", "messaging-service", "test", nil)

	users := map[string]access.Actor{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		actor, ok := users[c.GetHeader(testUserHeader)]
		if ok {
			middleware.SetActor(c, actor)
		}
		c.Next()
	})
	Routes{Service: f.service, Audit: emitter, Logger: zap.NewNop()}.Register(r)
	RegisterDebugRoutes(r, emitter, true)
	f.router = r

	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := f.service.RegisterUser(context.Background(), messaging.RegisterInput{
			Email: name + "@example.com", Username: name, Password: "password1", PasswordConfirm: "password1",
		})
		require.NoError(t, err)
		users[name] = access.Actor{UserID: u.ID, Role: u.Role}
		switch name {
		case "alice":
			f.alice = u
		case "bob":
			f.bob = u
		case "carol":
			f.carol = u
		}
	}
	return f
}

func (f *apiFixture) do(t *testing.T, as, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set(testUserHeader, as)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) conversation(t *testing.T) models.Conversation {
	t.Helper()
	rec := f.do(t, "alice", http.MethodPost, "/conversations", gin.H{"participant_ids": []uuid.UUID{f.bob.ID}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Conversation](t, rec)
}

func (f *apiFixture) post(t *testing.T, as string, convID uuid.UUID, body gin.H) models.Message {
	t.Helper()
	rec := f.do(t, as, http.MethodPost, "/conversations/"+convID.String()+"/messages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Message](t, rec)
}

func TestRegisterUser(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "", http.MethodPost, "/users", gin.H{
		"email": "dave@example.com", "username": "dave", "password": "password1", "password_confirm": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "h:password1")
	user := decode[models.User](t, rec)
	assert.Equal(t, models.RoleGuest, user.Role)

	rec = f.do(t, "", http.MethodPost, "/users", gin.H{
		"email": "dave@example.com", "username": "dave2", "password": "password1", "password_confirm": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "", http.MethodPost, "/users", gin.H{
		"email": "erin@example.com", "username": "erin", "password": "password1", "password_confirm": "password2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password")

	rec = f.do(t, "", http.MethodPost, "/users", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsers(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "", http.MethodGet, "/users", nil).Code)

	rec := f.do(t, "carol", http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Users []models.User `json:"users"`
	}](t, rec)
	assert.Len(t, body.Users, 3)
}

func TestDeleteUser(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.conversation(t)
	f.post(t, "alice", conv.ID, gin.H{"content": "hello"})

	assert.Equal(t, http.StatusForbidden, f.do(t, "bob", http.MethodDelete, "/users/"+f.alice.ID.String(), nil).Code)

	rec := f.do(t, "alice", http.MethodDelete, "/users/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())

	rec = f.do(t, "alice", http.MethodDelete, "/users/"+f.alice.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User and all related data deleted successfully"}`, rec.Body.String())
	f.publisher.AssertCalled(t, "Publish", mock.Anything, "audit.messaging", mock.Anything)

	rec = f.do(t, "bob", http.MethodGet, "/inbox/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, "bob", http.MethodDelete, "/users/not-a-uuid", nil).Code)
}

func TestConversationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.conversation(t)
	assert.ElementsMatch(t, []uuid.UUID{f.alice.ID, f.bob.ID}, conv.ParticipantIDs)

	rec := f.do(t, "bob", http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Conversations []models.Conversation `json:"conversations"`
	}](t, rec)
	require.Len(t, list.Conversations, 1)

	assert.Equal(t, http.StatusOK, f.do(t, "bob", http.MethodGet, "/conversations/"+conv.ID.String(), nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "carol", http.MethodGet, "/conversations/"+conv.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "carol", http.MethodGet, "/conversations/"+uuid.NewString(), nil).Code)

	rec = f.do(t, "alice", http.MethodPost, "/conversations", gin.H{"participant_ids": []string{uuid.NewString()}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, "alice", http.MethodPost, "/conversations", gin.H{"participant_ids": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousRequestsAreRejected(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.conversation(t)
	msg := f.post(t, "alice", conv.ID, gin.H{"content": "hi"})

	cases := []struct{ method, path string }{
		{http.MethodGet, "/conversations"},
		{http.MethodPost, "/conversations"},
		{http.MethodGet, "/conversations/" + conv.ID.String() + "/messages"},
		{http.MethodPost, "/conversations/" + conv.ID.String() + "/messages"},
		{http.MethodGet, "/messages"},
		{http.MethodGet, "/messages/" + msg.ID.String()},
		{http.MethodGet, "/messages/" + msg.ID.String() + "/thread"},
		{http.MethodGet, "/inbox/unread"},
		{http.MethodGet, "/inbox/notifications"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			body := gin.H{"content": "x", "participant_ids": []uuid.UUID{f.bob.ID}}
			rec := f.do(t, "", tc.method, tc.path, body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hi")
		})
	}
}

func TestMessageLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.conversation(t)

	msg := f.post(t, "alice", conv.ID, gin.H{"content": "first"})
	assert.Equal(t, f.bob.ID, msg.ReceiverID)

	rec := f.do(t, "bob", http.MethodPost, "/messages", gin.H{"conversation_id": conv.ID, "content": "reply", "parent_id": msg.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(t, "carol", http.MethodGet, "/messages/"+msg.ID.String(), nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "carol", http.MethodPost, "/conversations/"+conv.ID.String()+"/messages", gin.H{"content": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "alice", http.MethodPost, "/messages", gin.H{"content": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "alice", http.MethodPost, "/conversations/"+conv.ID.String()+"/messages", gin.H{"content": "x", "parent_id": uuid.New()}).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, "bob", http.MethodPatch, "/messages/"+msg.ID.String(), gin.H{"content": "hacked"}).Code)
	rec = f.do(t, "alice", http.MethodPatch, "/messages/"+msg.ID.String(), gin.H{"content": "first, edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Message](t, rec).Edited)

	rec = f.do(t, "bob", http.MethodGet, "/messages/"+msg.ID.String()+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		History []models.MessageHistory `json:"history"`
	}](t, rec)
	require.Len(t, history.History, 1)
	assert.Equal(t, "first", history.History[0].OldContent)

	rec = f.do(t, "alice", http.MethodGet, "/messages/"+msg.ID.String()+"/thread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	thread := decode[models.ThreadNode](t, rec)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, "reply", thread.Replies[0].Message.Content)

	rec = f.do(t, "alice", http.MethodGet, "/conversations/"+conv.ID.String()+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, rec)
	assert.Len(t, list.Messages, 2)

	assert.Equal(t, http.StatusForbidden, f.do(t, "bob", http.MethodDelete, "/messages/"+msg.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "alice", http.MethodDelete, "/messages/"+msg.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "alice", http.MethodGet, "/messages/"+msg.ID.String(), nil).Code)
}

func TestInboxEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.conversation(t)
	msg := f.post(t, "alice", conv.ID, gin.H{"content": "unread one"})

	rec := f.do(t, "bob", http.MethodGet, "/inbox/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	require.Len(t, unread.Messages, 1)
	keys := make([]string, 0, len(unread.Messages[0]))
	for k := range unread.Messages[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"message_id", "sender_id", "receiver_id", "content", "timestamp"}, keys)

	assert.Equal(t, http.StatusForbidden, f.do(t, "alice", http.MethodPost, "/messages/"+msg.ID.String()+"/read", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "bob", http.MethodPost, "/messages/"+msg.ID.String()+"/read", nil).Code)
	rec = f.do(t, "bob", http.MethodGet, "/inbox/unread", nil)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	rec = f.do(t, "bob", http.MethodGet, "/inbox/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notifications := decode[struct {
		Notifications []models.Notification `json:"notifications"`
	}](t, rec)
	require.Len(t, notifications.Notifications, 1)
	id := notifications.Notifications[0].ID.String()

	assert.Equal(t, http.StatusForbidden, f.do(t, "alice", http.MethodPost, "/notifications/"+id+"/read", nil).Code)
	rec = f.do(t, "bob", http.MethodPost, "/notifications/"+id+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Notification](t, rec).Read)
}

func TestDebugAuditRoute(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, "alice", http.MethodGet, "/debug/audit-test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, "audit.messaging", mock.Anything)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, true)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
