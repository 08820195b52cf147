package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

func TestTemplateMatch(t *testing.T) {
	tmpl := NewTemplate(KindReviewCreated, "reviews/{reviewedUserId}/{reviewId}")

	params, ok := tmpl.Match("reviews/bob/r1")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"reviewedUserId": "bob", "reviewId": "r1"}, params)

	params, ok = tmpl.Match("/reviews/bob/r1/")
	require.True(t, ok)
	assert.Equal(t, "r1", params["reviewId"])

	for _, path := range []string{"reviews/bob", "reviews/bob/r1/rating", "tasks/bob/r1", ""} {
		_, ok := tmpl.Match(path)
		assert.False(t, ok, path)
	}
}

func newTriggered(t *testing.T) (*Store, Subscriber) {
	t.Helper()
	broker := NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()
	return NewStore(realtime.NewMemoryStore(), broker), sub
}

func next(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case evt := <-sub:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func assertQuiet(t *testing.T, sub Subscriber) {
	t.Helper()
	select {
	case evt := <-sub:
		t.Fatalf("unexpected event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageFanOutFiresOnce(t *testing.T) {
	store, sub := newTriggered(t)
	w := fanout.NewWriter(store, fanout.Atomic)

	msg := models.Message{ID: "m1", FromID: "alice", ToID: "bob", Text: "hi", TimeStamp: time.Unix(100, 0), TaskID: "t1", TaskOwnerID: "alice"}
	require.NoError(t, w.WriteMessage(context.Background(), msg))

	evt := next(t, sub)
	assert.Equal(t, KindMessageCreated, evt.Kind)
	assert.Equal(t, "messages/m1", evt.Path)
	assert.Equal(t, "m1", evt.Params["messageId"])
	assert.False(t, evt.Timestamp.IsZero())
	assertQuiet(t, sub)
}

func TestIndependentModeAlsoFires(t *testing.T) {
	store, sub := newTriggered(t)
	w := fanout.NewWriter(store, fanout.Independent)

	rev := models.Review{ID: "r1", ReviewedUserID: "bob", UserID: "alice", Rating: 4, Description: "Great helper", CreationDate: time.Unix(100, 0)}
	require.NoError(t, w.WriteReview(context.Background(), rev))

	evt := next(t, sub)
	assert.Equal(t, KindReviewCreated, evt.Kind)
	assert.Equal(t, "bob", evt.Params["reviewedUserId"])
	assert.Equal(t, "r1", evt.Params["reviewId"])
}

func TestOverwriteAndDeleteDoNotFire(t *testing.T) {
	store, sub := newTriggered(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "messages/m1", map[string]any{"text": "a"}))
	next(t, sub)

	require.NoError(t, store.Set(ctx, "messages/m1", map[string]any{"text": "b"}))
	require.NoError(t, store.Update(ctx, map[string]any{"messages/m1": nil}))
	require.NoError(t, store.Set(ctx, "messages/m1/text", "c"))
	require.NoError(t, store.Set(ctx, "tasks/alice/t1", map[string]any{"taskTitle": "x"}))
	assertQuiet(t, sub)
}

func TestFailedWriteDoesNotFire(t *testing.T) {
	store, sub := newTriggered(t)
	err := store.Update(context.Background(), map[string]any{
		"messages/m1":   map[string]any{"text": "a"},
		"messages/m1/x": "overlap",
	})
	require.ErrorIs(t, err, realtime.ErrInvalidPath)
	assertQuiet(t, sub)
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	b := NewBroker(WithQueueSize(1))

	// Not started, so the queue fills after one event.
	assert.True(t, b.Publish(&Event{Kind: KindMessageCreated}))
	assert.False(t, b.Publish(&Event{Kind: KindMessageCreated}))
	assert.Equal(t, uint64(1), b.Dropped())

	b.Stop()
	assert.False(t, b.Publish(&Event{Kind: KindReviewCreated}))
}

func TestBrokerDropsForFullSubscriber(t *testing.T) {
	b := NewBroker(WithSubscriberSize(1))
	b.Start()
	defer b.Stop()
	sub := b.Subscribe()

	b.Publish(&Event{Kind: KindMessageCreated, Path: "messages/m1"})
	b.Publish(&Event{Kind: KindMessageCreated, Path: "messages/m2"})
	require.Eventually(t, func() bool { return b.Dropped() == 1 }, time.Second, 5*time.Millisecond)

	evt := <-sub
	assert.Equal(t, "messages/m1", evt.Path)
}
