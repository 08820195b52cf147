package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

var (
	alice = session.Session{UserID: "alice"}
	bob   = session.Session{UserID: "bob"}
)

func newTestService(t *testing.T, hub *Hub) (*Service, realtime.Store) {
	t.Helper()
	store := realtime.NewMemoryStore()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "alice", FullName: "Alice A", EmailAddress: "alice@example.com"},
		{ID: "bob", FullName: "Bob B", EmailAddress: "bob@example.com"},
		{ID: "carol", FullName: "Carol C", EmailAddress: "carol@example.com"},
	} {
		require.NoError(t, store.Set(ctx, realtime.Join(models.UsersRef, u.ID), u.Record()))
	}

	svc := NewService(store, fanout.NewWriter(store, fanout.Atomic), hub)
	clock := time.Unix(1532217600, 0)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("m%02d", n)
	}
	return svc, store
}

func input(to, text string) MessageInput {
	return MessageInput{ToID: to, Text: text, TaskID: "t1", TaskOwnerID: "alice"}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name      string
		in        MessageInput
		wantField string
	}{
		{name: "valid", in: input("bob", "hi")},
		{name: "blank text", in: input("bob", "   "), wantField: "text"},
		{name: "to self", in: input("alice", "hi"), wantField: "to_id"},
		{name: "missing receiver", in: input("", "hi"), wantField: "to_id"},
		{name: "missing task", in: MessageInput{ToID: "bob", Text: "hi", TaskOwnerID: "alice"}, wantField: "task_id"},
		{name: "owner outside conversation", in: MessageInput{ToID: "bob", Text: "hi", TaskID: "t1", TaskOwnerID: "carol"}, wantField: "task_owner_id"},
		{name: "receiver owns task", in: MessageInput{ToID: "bob", Text: "hi", TaskID: "t1", TaskOwnerID: "bob"}},
		{name: "receiver path escapes", in: input("bob/fullName", "hi"), wantField: "to_id"},
		{name: "task path escapes", in: MessageInput{ToID: "bob", Text: "hi", TaskID: "t1/x", TaskOwnerID: "alice"}, wantField: "task_id"},
		{name: "owner with dot", in: MessageInput{ToID: "bob", Text: "hi", TaskID: "t1", TaskOwnerID: "alice.b"}, wantField: "task_owner_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage("alice", tt.in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			verr, ok := validate.As(err)
			require.True(t, ok, "expected a validation error, got %v", err)
			assert.True(t, verr.Has(tt.wantField), "fields: %+v", verr.Fields)
		})
	}
}

func TestSendMessageFansOut(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, alice, input("bob", "Is this still open?"))
	require.NoError(t, err)
	assert.Equal(t, "m01", msg.ID)
	assert.Equal(t, "alice", msg.FromID)

	stored, err := store.Get(ctx, fanout.MessagePath(msg.ID))
	require.NoError(t, err)
	assert.Equal(t, msg.Text, models.DecodeMessage(msg.ID, stored).Text)

	for _, p := range []string{
		fanout.BackReferencePath("alice", "bob", msg.ID),
		fanout.BackReferencePath("bob", "alice", msg.ID),
		fanout.ConversationPath("alice", "bob"),
		fanout.ConversationPath("bob", "alice"),
	} {
		ok, err := realtime.Exists(ctx, store, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestSendMessageRejects(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, session.Session{}, input("bob", "hi"))
	assert.ErrorIs(t, err, session.ErrUnauthenticated)

	_, err = svc.SendMessage(ctx, alice, input("ghost", "hi"))
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.SendMessage(ctx, alice, input("bob", ""))
	_, ok := validate.As(err)
	assert.True(t, ok)

	msgs, err := realtime.Children(ctx, store, models.MessagesRef)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageKeepsReceiverToOneKey(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	// users/bob/fullName exists as a leaf, so only the id check stops this.
	_, err := svc.SendMessage(ctx, alice, input("bob/fullName", "hi"))
	ve, ok := validate.As(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, ve.Has("to_id"))

	for _, ref := range []string{models.MessagesRef, models.UserMessagesRef, models.UserConversationsRef} {
		_, err := store.Get(ctx, ref)
		assert.ErrorIs(t, err, realtime.ErrNotFound, ref)
	}
}

func TestInboxIgnoresEntryWithoutMessageID(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, alice, input("bob", "hello"))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "user-conversations/bob/fullName/alice", map[string]any{"taskId": "t1"}))

	items, err := svc.Inbox(ctx, bob)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "alice", items[0].Partner.ID)
}

func TestConversationIDsValidated(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ChatLog(ctx, alice, "bob/x", "")
	_, ok := validate.As(err)
	assert.True(t, ok, "got %v", err)

	_, err = svc.ChatLog(ctx, alice, "bob", "t1/x")
	_, ok = validate.As(err)
	assert.True(t, ok, "got %v", err)

	err = svc.DeleteConversation(ctx, alice, "")
	_, ok = validate.As(err)
	assert.True(t, ok, "got %v", err)
}

func TestInboxNewestFirst(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, alice, input("bob", "first"))
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, session.Session{UserID: "carol"}, MessageInput{ToID: "alice", Text: "hello", TaskID: "t1", TaskOwnerID: "alice"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, bob, input("alice", "reply"))
	require.NoError(t, err)

	items, err := svc.Inbox(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "bob", items[0].Partner.ID)
	assert.Equal(t, "reply", items[0].Message.Text)
	assert.Equal(t, "Bob B", items[0].Partner.FullName)
	assert.Equal(t, "carol", items[1].Partner.ID)
}

func TestInboxSkipsDanglingEntries(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, alice, input("bob", "hello"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, fanout.MessagePath(msg.ID)))

	items, err := svc.Inbox(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestChatLogOldestFirstAndFiltered(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, alice, input("bob", "one"))
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, bob, input("alice", "two"))
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, alice, MessageInput{ToID: "bob", Text: "other task", TaskID: "t2", TaskOwnerID: "bob"})
	require.NoError(t, err)

	all, err := svc.ChatLog(ctx, bob, "alice", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"one", "two", "other task"}, []string{all[0].Text, all[1].Text, all[2].Text})

	t1, err := svc.ChatLog(ctx, bob, "alice", "t1")
	require.NoError(t, err)
	assert.Len(t, t1, 2)

	none, err := svc.ChatLog(ctx, bob, "carol", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteConversationOneSided(t *testing.T) {
	hub := NewHub()
	svc, _ := newTestService(t, hub)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, alice, input("bob", "hello"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteConversation(ctx, alice, "bob"))

	mine, err := svc.Inbox(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := svc.Inbox(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	err = svc.DeleteConversation(ctx, alice, " ")
	_, ok := validate.As(err)
	assert.True(t, ok)
}

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	svc, _ := newTestService(t, hub)

	e := echo.New()
	e.GET("/ws", hub.Stream, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.Attach(c, session.Session{UserID: c.QueryParam("uid")})
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=bob"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.Connections("bob") == 1 }, time.Second, 10*time.Millisecond)

	sent, err := svc.SendMessage(context.Background(), alice, input("bob", "ping"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt struct {
		Type string         `json:"type"`
		Data models.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &evt))
	assert.Equal(t, EventMessageNew, evt.Type)
	assert.Equal(t, sent.ID, evt.Data.ID)
	assert.Equal(t, 0, hub.Connections("alice"))
}

func TestHandlersRequireSession(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Inbox(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessageHandler(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := NewHandler(svc)
	e := echo.New()

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		session.Attach(c, alice)
		require.NoError(t, h.SendMessage(c))
		return rec
	}

	rec := send(`{"to_id":"bob","text":"hi","task_id":"t1","task_owner_id":"alice"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message_id":"m01"`)

	rec = send(`{"to_id":"ghost","text":"hi","task_id":"t1","task_owner_id":"alice"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(`{"to_id":"bob","text":"","task_id":"t1","task_owner_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"text"`)
}
