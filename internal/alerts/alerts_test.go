package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	fcm "firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/trigger"
)

type recordingSender struct {
	mu     sync.Mutex
	pushes []Push
	err    error
}

func (s *recordingSender) Send(_ context.Context, p Push) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pushes = append(s.pushes, p)
	return nil
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (e *recordingEnqueuer) snapshot() []*asynq.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*asynq.Task(nil), e.tasks...)
}

func seedUsers(t *testing.T, store realtime.Store) {
	t.Helper()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "alice", FullName: "Alice Smith", FCMToken: "tok-alice"},
		{ID: "bob", FullName: "Bob Jones", FCMToken: "tok-bob"},
		{ID: "carol", FullName: "Carol White"},
	} {
		require.NoError(t, store.Set(ctx, realtime.Join(models.UsersRef, u.ID), u.Record()))
	}
}

func TestBuildMessagePush(t *testing.T) {
	msg := models.Message{ID: "m1", FromID: "alice", ToID: "bob", TaskID: "t1", TaskOwnerID: "bob"}
	push, ok := BuildMessagePush(msg, models.User{FullName: "Alice Smith"}, models.User{FCMToken: "tok-bob"})
	require.True(t, ok)
	assert.Equal(t, Push{
		Token: "tok-bob",
		Title: "New Message",
		Body:  "Alice Smith sent you a new message.",
		Data: map[string]string{
			"type":        "message",
			"taskOwnerId": "bob",
			"fromId":      "alice",
			"taskId":      "t1",
		},
	}, push)

	_, ok = BuildMessagePush(msg, models.User{FullName: "Alice Smith"}, models.User{})
	assert.False(t, ok)
}

func TestBuildReviewPush(t *testing.T) {
	push, ok := BuildReviewPush(models.User{FullName: "Alice Smith"}, models.User{FCMToken: "tok-bob"})
	require.True(t, ok)
	assert.Equal(t, Push{
		Token: "tok-bob",
		Title: "New Review",
		Body:  "Alice Smith has left a review on your profile.",
		Data:  map[string]string{"type": "review"},
	}, push)

	_, ok = BuildReviewPush(models.User{FullName: "Alice Smith"}, models.User{})
	assert.False(t, ok)
}

func task(t *testing.T, typename string, payload any) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typename, b)
}

func TestRelayMessagePush(t *testing.T) {
	store := realtime.NewMemoryStore()
	seedUsers(t, store)
	ctx := context.Background()
	w := fanout.NewWriter(store, fanout.Atomic)
	require.NoError(t, w.WriteMessage(ctx, models.Message{
		ID: "m1", FromID: "alice", ToID: "bob", Text: "hi", TimeStamp: time.Unix(100, 0), TaskID: "t1", TaskOwnerID: "alice",
	}))

	sender := &recordingSender{}
	relay := NewRelay(store, sender)
	require.NoError(t, relay.HandleMessagePush(ctx, task(t, TaskPushMessage, MessagePushPayload{MessageID: "m1"})))

	require.Len(t, sender.pushes, 1)
	assert.Equal(t, "tok-bob", sender.pushes[0].Token)
	assert.Equal(t, "Alice Smith sent you a new message.", sender.pushes[0].Body)
	assert.Equal(t, "alice", sender.pushes[0].Data["taskOwnerId"])
}

func TestRelaySkipsUsersWithoutToken(t *testing.T) {
	store := realtime.NewMemoryStore()
	seedUsers(t, store)
	ctx := context.Background()
	w := fanout.NewWriter(store, fanout.Atomic)
	require.NoError(t, w.WriteMessage(ctx, models.Message{
		ID: "m1", FromID: "alice", ToID: "carol", Text: "hi", TimeStamp: time.Unix(100, 0), TaskID: "t1", TaskOwnerID: "alice",
	}))
	require.NoError(t, w.WriteReview(ctx, models.Review{
		ID: "r1", ReviewedUserID: "ghost", UserID: "alice", Rating: 5, Description: "Great to work with", CreationDate: time.Unix(100, 0),
	}))

	sender := &recordingSender{}
	relay := NewRelay(store, sender)
	assert.NoError(t, relay.HandleMessagePush(ctx, task(t, TaskPushMessage, MessagePushPayload{MessageID: "m1"})))
	assert.NoError(t, relay.HandleReviewPush(ctx, task(t, TaskPushReview, ReviewPushPayload{ReviewedUserID: "ghost", ReviewID: "r1"})))
	assert.Empty(t, sender.pushes)
}

func TestRelayReviewPush(t *testing.T) {
	store := realtime.NewMemoryStore()
	seedUsers(t, store)
	ctx := context.Background()
	require.NoError(t, fanout.NewWriter(store, fanout.Atomic).WriteReview(ctx, models.Review{
		ID: "r1", ReviewedUserID: "bob", UserID: "alice", Rating: 4, Description: "Quick and friendly", CreationDate: time.Unix(100, 0),
	}))

	sender := &recordingSender{}
	relay := NewRelay(store, sender)
	require.NoError(t, relay.HandleReviewPush(ctx, task(t, TaskPushReview, ReviewPushPayload{ReviewedUserID: "bob", ReviewID: "r1"})))
	require.Len(t, sender.pushes, 1)
	assert.Equal(t, "Alice Smith has left a review on your profile.", sender.pushes[0].Body)
}

func TestRelayFailuresAreNotRetried(t *testing.T) {
	store := realtime.NewMemoryStore()
	seedUsers(t, store)
	ctx := context.Background()

	relay := NewRelay(store, &recordingSender{})
	err := relay.HandleMessagePush(ctx, task(t, TaskPushMessage, MessagePushPayload{MessageID: "missing"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, realtime.ErrNotFound)

	err = relay.HandleReviewPush(ctx, asynq.NewTask(TaskPushReview, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	require.NoError(t, fanout.NewWriter(store, fanout.Atomic).WriteReview(ctx, models.Review{
		ID: "r1", ReviewedUserID: "bob", UserID: "alice", Rating: 4, Description: "Quick and friendly", CreationDate: time.Unix(100, 0),
	}))
	boom := errors.New("fcm unavailable")
	relay = NewRelay(store, &recordingSender{err: boom})
	err = relay.HandleReviewPush(ctx, task(t, TaskPushReview, ReviewPushPayload{ReviewedUserID: "bob", ReviewID: "r1"}))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDispatcherMapsEvents(t *testing.T) {
	enq := &recordingEnqueuer{}
	d := NewDispatcher(enq)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, &trigger.Event{Kind: trigger.KindMessageCreated, Params: map[string]string{"messageId": "m1"}}))
	require.NoError(t, d.Dispatch(ctx, &trigger.Event{Kind: trigger.KindReviewCreated, Params: map[string]string{"reviewedUserId": "bob", "reviewId": "r1"}}))
	require.NoError(t, d.Dispatch(ctx, &trigger.Event{Kind: "task.created"}))

	tasks := enq.snapshot()
	require.Len(t, tasks, 2)
	assert.Equal(t, TaskPushMessage, tasks[0].Type())
	assert.JSONEq(t, `{"message_id":"m1"}`, string(tasks[0].Payload()))
	assert.Equal(t, TaskPushReview, tasks[1].Type())
	assert.JSONEq(t, `{"reviewed_user_id":"bob","review_id":"r1"}`, string(tasks[1].Payload()))
}

func TestDispatcherRunFromTriggers(t *testing.T) {
	broker := trigger.NewBroker()
	broker.Start()
	defer broker.Stop()

	store := trigger.NewStore(realtime.NewMemoryStore(), broker)
	enq := &recordingEnqueuer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		NewDispatcher(enq).Run(ctx, broker.Subscribe())
		close(done)
	}()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, fanout.NewWriter(store, fanout.Atomic).WriteMessage(ctx, models.Message{
		ID: "m1", FromID: "alice", ToID: "bob", Text: "hi", TimeStamp: time.Unix(100, 0), TaskID: "t1", TaskOwnerID: "alice",
	}))
	require.Eventually(t, func() bool { return len(enq.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherEnqueueErrorIsLoggedNotFatal(t *testing.T) {
	enq := &recordingEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(enq)
	err := d.EnqueueMessagePush(context.Background(), "m1")
	assert.ErrorContains(t, err, "redis down")

	sub := make(trigger.Subscriber, 1)
	sub <- &trigger.Event{Kind: trigger.KindMessageCreated, Params: map[string]string{"messageId": "m1"}}
	close(sub)
	d.Run(context.Background(), sub)
}

type fakeFCM struct {
	sent []*fcm.Message
}

func (f *fakeFCM) Send(_ context.Context, m *fcm.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", nil
}

func TestFCMSender(t *testing.T) {
	client := &fakeFCM{}
	s := &FCMSender{client: client}

	require.NoError(t, s.Send(context.Background(), Push{Token: "tok", Title: "New Review", Body: "b", Data: map[string]string{"type": "review"}}))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "tok", client.sent[0].Token)
	assert.Equal(t, "New Review", client.sent[0].Notification.Title)
	assert.Equal(t, "review", client.sent[0].Data["type"])

	assert.ErrorIs(t, s.Send(context.Background(), Push{}), ErrNoToken)
	assert.ErrorIs(t, NewLogSender().Send(context.Background(), Push{}), ErrNoToken)
}
