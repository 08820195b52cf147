package alerts

// Task type constants
const (
	TaskPushMessage = "push:message"
	TaskPushReview  = "push:review"
)

// QueuePush is the asynq queue push jobs are enqueued on.
const QueuePush = "push"

// Push type values carried in the "type" data field.
const (
	PushTypeMessage = "message"
	PushTypeReview  = "review"
)

// Message push payload (raised when messages/{messageId} is created)
type MessagePushPayload struct {
	MessageID string `json:"message_id"`
}

// Review push payload (raised when reviews/{reviewedUserId}/{reviewId} is created)
type ReviewPushPayload struct {
	ReviewedUserID string `json:"reviewed_user_id"`
	ReviewID       string `json:"review_id"`
}

// Push is one notification addressed to a device token.
type Push struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}
