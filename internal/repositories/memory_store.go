package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/models"
)

// MemoryStore is an in-process Store used when no database is configured and
// in tests. Transactions are serialized and roll back by restoring a snapshot.
// It enforces the same references and cascades as the Postgres schema.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users         map[uuid.UUID]models.User
	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID]models.Message
	notifications map[uuid.UUID]models.Notification
	history       map[uuid.UUID]models.MessageHistory
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:         make(map[uuid.UUID]models.User),
			conversations: make(map[uuid.UUID]models.Conversation),
			messages:      make(map[uuid.UUID]models.Message),
			notifications: make(map[uuid.UUID]models.Notification),
			history:       make(map[uuid.UUID]models.MessageHistory),
		},
	}
}

func (s *MemoryStore) Users() UserRepository                 { return memUsers{s} }
func (s *MemoryStore) Conversations() ConversationRepository { return memConversations{s} }
func (s *MemoryStore) Messages() MessageRepository           { return memMessages{s} }
func (s *MemoryStore) Notifications() NotificationRepository { return memNotifications{s} }
func (s *MemoryStore) History() HistoryRepository            { return memHistory{s} }

// WithinTx runs fn while holding the store lock and restores the previous
// state when fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&MemoryStore{mu: s.mu, data: s.data, inTx: true}); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (d *memData) clone() *memData {
	out := &memData{
		users:         make(map[uuid.UUID]models.User, len(d.users)),
		conversations: make(map[uuid.UUID]models.Conversation, len(d.conversations)),
		messages:      make(map[uuid.UUID]models.Message, len(d.messages)),
		notifications: make(map[uuid.UUID]models.Notification, len(d.notifications)),
		history:       make(map[uuid.UUID]models.MessageHistory, len(d.history)),
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.conversations {
		v.ParticipantIDs = append([]uuid.UUID(nil), v.ParticipantIDs...)
		out.conversations[k] = v
	}
	for k, v := range d.messages {
		out.messages[k] = v
	}
	for k, v := range d.notifications {
		out.notifications[k] = v
	}
	for k, v := range d.history {
		out.history[k] = v
	}
	return out
}

// deleteMessage removes a message with its replies, notification and history.
func (d *memData) deleteMessage(id uuid.UUID) {
	if _, ok := d.messages[id]; !ok {
		return
	}
	delete(d.messages, id)
	for childID, m := range d.messages {
		if m.ParentID != nil && *m.ParentID == id {
			d.deleteMessage(childID)
		}
	}
	for nid, n := range d.notifications {
		if n.MessageID == id {
			delete(d.notifications, nid)
		}
	}
	for hid, h := range d.history {
		if h.MessageID == id {
			delete(d.history, hid)
		}
	}
}

// detach copies the parent reference so stored rows never share memory with
// callers.
func detach(m models.Message) models.Message {
	if m.ParentID != nil {
		parent := *m.ParentID
		m.ParentID = &parent
	}
	return m
}

func fkError(table, column string, id uuid.UUID) error {
	return fmt.Errorf("memory store: %s.%s references missing row %s", table, column, id)
}

func sortMessages(msgs []models.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
}

type memUsers struct{ s *MemoryStore }

func (r memUsers) CreateUser(_ context.Context, user models.User) (models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return models.User{}, ErrEmailTaken
		}
	}
	r.s.data.users[user.ID] = user
	return user, nil
}

func (r memUsers) GetUser(_ context.Context, userID uuid.UUID) (models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.data.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r memUsers) GetUsers(_ context.Context, userIDs []uuid.UUID) ([]models.User, error) {
	defer r.s.lock()()
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	users := []models.User{}
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.s.data.users[id]; ok {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r memUsers) ListUsers(_ context.Context) ([]models.User, error) {
	defer r.s.lock()()
	users := make([]models.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r memUsers) DeleteUser(_ context.Context, userID uuid.UUID) error {
	defer r.s.lock()()
	d := r.s.data
	if _, ok := d.users[userID]; !ok {
		return ErrUserNotFound
	}
	for id, m := range d.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			d.deleteMessage(id)
		}
	}
	for id, h := range d.history {
		if h.EditedBy == userID {
			delete(d.history, id)
		}
	}
	for id, n := range d.notifications {
		if n.SenderID == userID || n.RecipientID == userID {
			delete(d.notifications, id)
		}
	}
	for id, c := range d.conversations {
		kept := c.ParticipantIDs[:0:0]
		for _, p := range c.ParticipantIDs {
			if p != userID {
				kept = append(kept, p)
			}
		}
		c.ParticipantIDs = kept
		d.conversations[id] = c
	}
	delete(d.users, userID)
	return nil
}

type memConversations struct{ s *MemoryStore }

func (r memConversations) CreateConversation(_ context.Context, conv models.Conversation) (models.Conversation, error) {
	defer r.s.lock()()
	conv.ParticipantIDs = dedupeIDs(conv.ParticipantIDs)
	for _, id := range conv.ParticipantIDs {
		if _, ok := r.s.data.users[id]; !ok {
			return models.Conversation{}, fkError("conversation_participants", "user_id", id)
		}
	}
	r.s.data.conversations[conv.ID] = conv
	return conv, nil
}

func (r memConversations) GetConversation(_ context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	defer r.s.lock()()
	c, ok := r.s.data.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	c.ParticipantIDs = append([]uuid.UUID(nil), c.ParticipantIDs...)
	return c, nil
}

func (r memConversations) ListConversationsForUser(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	defer r.s.lock()()
	convs := []models.Conversation{}
	for _, c := range r.s.data.conversations {
		if c.HasParticipant(userID) {
			c.ParticipantIDs = append([]uuid.UUID(nil), c.ParticipantIDs...)
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	return convs, nil
}

type memMessages struct{ s *MemoryStore }

func (r memMessages) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	defer r.s.lock()()
	d := r.s.data
	if _, ok := d.conversations[msg.ConversationID]; !ok {
		return models.Message{}, fkError("messages", "conversation_id", msg.ConversationID)
	}
	if _, ok := d.users[msg.SenderID]; !ok {
		return models.Message{}, fkError("messages", "sender_id", msg.SenderID)
	}
	if _, ok := d.users[msg.ReceiverID]; !ok {
		return models.Message{}, fkError("messages", "receiver_id", msg.ReceiverID)
	}
	if msg.ParentID != nil {
		if _, ok := d.messages[*msg.ParentID]; !ok {
			return models.Message{}, fkError("messages", "parent_id", *msg.ParentID)
		}
	}
	msg = detach(msg)
	msg.Edited = false
	msg.Read = false
	d.messages[msg.ID] = msg
	return detach(msg), nil
}

func (r memMessages) GetMessage(_ context.Context, messageID uuid.UUID) (models.Message, error) {
	defer r.s.lock()()
	m, ok := r.s.data.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return detach(m), nil
}

func (r memMessages) GetMessageForUpdate(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	return r.GetMessage(ctx, messageID)
}

func (r memMessages) UpdateContent(_ context.Context, messageID uuid.UUID, content string, updatedAt time.Time) (models.Message, error) {
	defer r.s.lock()()
	m, ok := r.s.data.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = updatedAt
	r.s.data.messages[messageID] = m
	return detach(m), nil
}

func (r memMessages) MarkRead(_ context.Context, messageID uuid.UUID) error {
	defer r.s.lock()()
	m, ok := r.s.data.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	m.Read = true
	r.s.data.messages[messageID] = m
	return nil
}

func (r memMessages) DeleteMessage(_ context.Context, messageID uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.messages[messageID]; !ok {
		return ErrMessageNotFound
	}
	r.s.data.deleteMessage(messageID)
	return nil
}

func (r memMessages) ListConversationMessages(_ context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	defer r.s.lock()()
	msgs := []models.Message{}
	for _, m := range r.s.data.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, detach(m))
		}
	}
	sortMessages(msgs)
	return msgs, nil
}

func (r memMessages) ListMessagesForUser(_ context.Context, userID uuid.UUID) ([]models.Message, error) {
	defer r.s.lock()()
	msgs := []models.Message{}
	for _, m := range r.s.data.messages {
		if c, ok := r.s.data.conversations[m.ConversationID]; ok && c.HasParticipant(userID) {
			msgs = append(msgs, detach(m))
		}
	}
	sortMessages(msgs)
	return msgs, nil
}

func (r memMessages) ListDescendants(_ context.Context, rootID uuid.UUID, levels int) ([]models.Message, error) {
	defer r.s.lock()()
	children := make(map[uuid.UUID][]models.Message)
	for _, m := range r.s.data.messages {
		if m.ParentID != nil {
			children[*m.ParentID] = append(children[*m.ParentID], m)
		}
	}

	msgs := []models.Message{}
	seen := map[uuid.UUID]bool{rootID: true}
	level := []uuid.UUID{rootID}
	for depth := 1; depth <= levels && len(level) > 0; depth++ {
		var next []uuid.UUID
		for _, id := range level {
			for _, child := range children[id] {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				msgs = append(msgs, detach(child))
				next = append(next, child.ID)
			}
		}
		level = next
	}
	sortMessages(msgs)
	return msgs, nil
}

func (r memMessages) ListUnread(_ context.Context, receiverID uuid.UUID) ([]models.UnreadMessage, error) {
	defer r.s.lock()()
	msgs := []models.Message{}
	for _, m := range r.s.data.messages {
		if m.ReceiverID == receiverID && !m.Read {
			msgs = append(msgs, m)
		}
	}
	sortMessages(msgs)

	out := make([]models.UnreadMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.UnreadMessage{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}

type memNotifications struct{ s *MemoryStore }

func (r memNotifications) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	defer r.s.lock()()
	if _, ok := r.s.data.messages[n.MessageID]; !ok {
		return models.Notification{}, fkError("notifications", "message_id", n.MessageID)
	}
	for _, existing := range r.s.data.notifications {
		if existing.MessageID == n.MessageID {
			return models.Notification{}, ErrNotificationExists
		}
	}
	n.Read = false
	r.s.data.notifications[n.ID] = n
	return n, nil
}

func (r memNotifications) GetNotification(_ context.Context, notificationID uuid.UUID) (models.Notification, error) {
	defer r.s.lock()()
	n, ok := r.s.data.notifications[notificationID]
	if !ok {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

func (r memNotifications) ListForRecipient(_ context.Context, recipientID uuid.UUID) ([]models.Notification, error) {
	defer r.s.lock()()
	list := []models.Notification{}
	for _, n := range r.s.data.notifications {
		if n.RecipientID == recipientID {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (r memNotifications) MarkNotificationRead(_ context.Context, notificationID uuid.UUID) error {
	defer r.s.lock()()
	n, ok := r.s.data.notifications[notificationID]
	if !ok {
		return ErrNotificationNotFound
	}
	n.Read = true
	r.s.data.notifications[notificationID] = n
	return nil
}

type memHistory struct{ s *MemoryStore }

func (r memHistory) CreateHistory(_ context.Context, h models.MessageHistory) (models.MessageHistory, error) {
	defer r.s.lock()()
	if _, ok := r.s.data.messages[h.MessageID]; !ok {
		return models.MessageHistory{}, fkError("message_history", "message_id", h.MessageID)
	}
	if _, ok := r.s.data.users[h.EditedBy]; !ok {
		return models.MessageHistory{}, fkError("message_history", "edited_by", h.EditedBy)
	}
	r.s.data.history[h.ID] = h
	return h, nil
}

func (r memHistory) ListForMessage(_ context.Context, messageID uuid.UUID) ([]models.MessageHistory, error) {
	defer r.s.lock()()
	list := []models.MessageHistory{}
	for _, h := range r.s.data.history {
		if h.MessageID == messageID {
			list = append(list, h)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].EditedAt.Equal(list[j].EditedAt) {
			return list[i].EditedAt.Before(list[j].EditedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
