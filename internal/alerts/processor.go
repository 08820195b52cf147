package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/metrics"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

// BuildMessagePush addresses the receiver of msg. ok is false when the
// receiver has no push token.
func BuildMessagePush(msg models.Message, sender, receiver models.User) (Push, bool) {
	if receiver.FCMToken == "" {
		return Push{}, false
	}
	return Push{
		Token: receiver.FCMToken,
		Title: "New Message",
		Body:  sender.FullName + " sent you a new message.",
		Data: map[string]string{
			"type":                PushTypeMessage,
			models.KeyTaskOwnerID: msg.TaskOwnerID,
			models.KeyFromID:      msg.FromID,
			models.KeyTaskID:      msg.TaskID,
		},
	}, true
}

// BuildReviewPush addresses the reviewed user. ok is false when they have
// no push token.
func BuildReviewPush(reviewer, reviewed models.User) (Push, bool) {
	if reviewed.FCMToken == "" {
		return Push{}, false
	}
	return Push{
		Token: reviewed.FCMToken,
		Title: "New Review",
		Body:  reviewer.FullName + " has left a review on your profile.",
		Data:  map[string]string{"type": PushTypeReview},
	}, true
}

// Relay processes push jobs: it reads the created record and the users
// involved from the store and hands the built push to a Sender.
type Relay struct {
	store  realtime.Store
	sender Sender
	logger zerolog.Logger
}

func NewRelay(store realtime.Store, sender Sender) *Relay {
	return &Relay{store: store, sender: sender, logger: log.WithComponent("relay")}
}

// Register mounts the relay handlers on mux.
func (r *Relay) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskPushMessage, r.HandleMessagePush)
	mux.HandleFunc(TaskPushReview, r.HandleReviewPush)
}

// fail logs err and marks the job as not retryable.
func (r *Relay) fail(pushType string, err error) error {
	metrics.PushSendsTotal.WithLabelValues(pushType, "error").Inc()
	r.logger.Error().Err(err).Str("type", pushType).Msg("push failed")
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// user reads uid's record. A missing user decodes to an empty profile, so
// it is skipped for lack of a token rather than failing the job.
func (r *Relay) user(ctx context.Context, uid string) (models.User, error) {
	v, err := r.store.Get(ctx, realtime.Join(models.UsersRef, uid))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.DecodeUser(uid, nil), nil
	}
	if err != nil {
		return models.User{}, fmt.Errorf("read user %s: %w", uid, err)
	}
	return models.DecodeUser(uid, v), nil
}

func (r *Relay) deliver(ctx context.Context, pushType string, p Push, ok bool, recipient string) error {
	if !ok {
		metrics.PushSendsTotal.WithLabelValues(pushType, "skipped").Inc()
		r.logger.Info().Str("type", pushType).Str("user_id", recipient).Msg("recipient has no push token, skipping")
		return nil
	}
	if err := r.sender.Send(ctx, p); err != nil {
		return r.fail(pushType, err)
	}
	metrics.PushSendsTotal.WithLabelValues(pushType, "ok").Inc()
	r.logger.Info().Str("type", pushType).Str("user_id", recipient).Msg("push sent")
	return nil
}

func (r *Relay) HandleMessagePush(ctx context.Context, t *asynq.Task) error {
	var p MessagePushPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return r.fail(PushTypeMessage, fmt.Errorf("decode payload: %w", err))
	}

	v, err := r.store.Get(ctx, realtime.Join(models.MessagesRef, p.MessageID))
	if err != nil {
		return r.fail(PushTypeMessage, fmt.Errorf("read message %s: %w", p.MessageID, err))
	}
	msg := models.DecodeMessage(p.MessageID, v)

	receiver, err := r.user(ctx, msg.ToID)
	if err != nil {
		return r.fail(PushTypeMessage, err)
	}
	sender, err := r.user(ctx, msg.FromID)
	if err != nil {
		return r.fail(PushTypeMessage, err)
	}

	push, ok := BuildMessagePush(msg, sender, receiver)
	return r.deliver(ctx, PushTypeMessage, push, ok, receiver.ID)
}

func (r *Relay) HandleReviewPush(ctx context.Context, t *asynq.Task) error {
	var p ReviewPushPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return r.fail(PushTypeReview, fmt.Errorf("decode payload: %w", err))
	}

	v, err := r.store.Get(ctx, realtime.Join(models.ReviewsRef, p.ReviewedUserID, p.ReviewID))
	if err != nil {
		return r.fail(PushTypeReview, fmt.Errorf("read review %s: %w", p.ReviewID, err))
	}
	review := models.DecodeReview(p.ReviewedUserID, p.ReviewID, v)

	reviewed, err := r.user(ctx, review.ReviewedUserID)
	if err != nil {
		return r.fail(PushTypeReview, err)
	}
	reviewer, err := r.user(ctx, review.UserID)
	if err != nil {
		return r.fail(PushTypeReview, err)
	}

	push, ok := BuildReviewPush(reviewer, reviewed)
	return r.deliver(ctx, PushTypeReview, push, ok, reviewed.ID)
}
