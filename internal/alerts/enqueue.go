package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/trigger"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns trigger events into push jobs.
type Dispatcher struct {
	client Enqueuer
	logger zerolog.Logger
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client, logger: log.WithComponent("alerts")}
}

func (d *Dispatcher) enqueue(ctx context.Context, typename string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", typename, err)
	}
	// Notifications are best effort: a failed send is never retried.
	task := asynq.NewTask(typename, b, asynq.MaxRetry(0), asynq.Queue(QueuePush))
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", typename, err)
	}
	return nil
}

// EnqueueMessagePush schedules the push for a newly created message
func (d *Dispatcher) EnqueueMessagePush(ctx context.Context, messageID string) error {
	return d.enqueue(ctx, TaskPushMessage, MessagePushPayload{MessageID: messageID})
}

// EnqueueReviewPush schedules the push for a newly created review
func (d *Dispatcher) EnqueueReviewPush(ctx context.Context, reviewedUserID, reviewID string) error {
	return d.enqueue(ctx, TaskPushReview, ReviewPushPayload{ReviewedUserID: reviewedUserID, ReviewID: reviewID})
}

// Dispatch enqueues the job matching evt. Unknown kinds are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *trigger.Event) error {
	switch evt.Kind {
	case trigger.KindMessageCreated:
		return d.EnqueueMessagePush(ctx, evt.Params["messageId"])
	case trigger.KindReviewCreated:
		return d.EnqueueReviewPush(ctx, evt.Params["reviewedUserId"], evt.Params["reviewId"])
	}
	return nil
}

// Run dispatches events from sub until ctx is done or sub is closed.
// Enqueue failures are logged and never reach the writer that raised them.
func (d *Dispatcher) Run(ctx context.Context, sub trigger.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := d.Dispatch(ctx, evt); err != nil {
				d.logger.Error().Err(err).Str("kind", string(evt.Kind)).Str("path", evt.Path).Msg("dispatch failed")
			}
		}
	}
}
