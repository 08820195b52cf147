package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

// ErrUserNotFound is returned when the receiver of a message does not exist.
var ErrUserNotFound = errors.New("user not found")

// MessageInput is the request to send a message about a task.
type MessageInput struct {
	ToID        string `json:"to_id" validate:"required,segment"`
	Text        string `json:"text" validate:"notblank"`
	TaskID      string `json:"task_id" validate:"required,segment"`
	TaskOwnerID string `json:"task_owner_id" validate:"required,segment"`
}

// InboxItem is one row of a user's inbox: the newest message exchanged with
// a partner and the partner's profile.
type InboxItem struct {
	Partner models.User    `json:"partner"`
	Message models.Message `json:"message"`
}

// Service sends messages and reads conversations.
type Service struct {
	store  realtime.Store
	writer *fanout.Writer
	hub    *Hub
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewService creates the messaging service. hub may be nil when no live
// connections are served.
func NewService(store realtime.Store, writer *fanout.Writer, hub *Hub) *Service {
	return &Service{
		store:  store,
		writer: writer,
		hub:    hub,
		now:    time.Now,
		newID:  models.NewID,
		logger: log.WithComponent("messaging"),
	}
}

// ValidateMessage checks a message sent by senderID.
func ValidateMessage(senderID string, in MessageInput) error {
	var v validate.Collector
	v.Struct(in)
	v.Check(in.ToID == "" || in.ToID != senderID, "to_id", "cannot message yourself")
	if in.TaskOwnerID != "" {
		v.Check(in.TaskOwnerID == senderID || in.TaskOwnerID == in.ToID, "task_owner_id", "must be one of the participants")
	}
	return v.Err()
}

// SendMessage stores a message from the session user and fans it out to
// both participants' indexes. Push notifications are raised by the relay,
// not here.
func (s *Service) SendMessage(ctx context.Context, sess session.Session, in MessageInput) (models.Message, error) {
	if !sess.Valid() {
		return models.Message{}, session.ErrUnauthenticated
	}
	if err := ValidateMessage(sess.UserID, in); err != nil {
		return models.Message{}, err
	}
	ok, err := realtime.Exists(ctx, s.store, realtime.Join(models.UsersRef, in.ToID))
	if err != nil {
		return models.Message{}, fmt.Errorf("lookup receiver: %w", err)
	}
	if !ok {
		return models.Message{}, ErrUserNotFound
	}

	msg := models.Message{
		ID:          s.newID(),
		FromID:      sess.UserID,
		ToID:        in.ToID,
		Text:        in.Text,
		TimeStamp:   s.now().UTC(),
		TaskID:      in.TaskID,
		TaskOwnerID: in.TaskOwnerID,
	}
	if err := s.writer.WriteMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	if s.hub != nil {
		evt := Event{Type: EventMessageNew, Data: msg}
		s.hub.Publish(msg.FromID, evt)
		s.hub.Publish(msg.ToID, evt)
	}
	s.logger.Debug().Str("message_id", msg.ID).Str("from", msg.FromID).Str("to", msg.ToID).Msg("message sent")
	return msg, nil
}

// Inbox returns one item per chat partner, newest conversation first.
func (s *Service) Inbox(ctx context.Context, sess session.Session) ([]InboxItem, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	entries, err := realtime.Children(ctx, s.store, realtime.Join(models.UserConversationsRef, sess.UserID))
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	items := make([]InboxItem, 0, len(entries))
	for partnerID, v := range entries {
		entry := models.DecodeConversationEntry(partnerID, v)
		msg, err := s.message(ctx, entry.MessageID)
		if errors.Is(err, realtime.ErrNotFound) {
			s.logger.Warn().Str("user_id", sess.UserID).Str("message_id", entry.MessageID).Msg("inbox entry points at a missing message")
			continue
		}
		if err != nil {
			return nil, err
		}
		partner, err := s.user(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		items = append(items, InboxItem{Partner: partner, Message: msg})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Message.TimeStamp.After(items[j].Message.TimeStamp)
	})
	return items, nil
}

// ChatLog returns the messages exchanged with partnerID, oldest first. A
// non-empty taskID restricts the log to that task.
func (s *Service) ChatLog(ctx context.Context, sess session.Session, partnerID, taskID string) ([]models.Message, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	var v validate.Collector
	v.ID("partner", partnerID)
	if taskID != "" {
		v.ID("task", taskID)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	refs, err := realtime.Children(ctx, s.store, realtime.Join(models.UserMessagesRef, sess.UserID, partnerID))
	if err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}

	messages := make([]models.Message, 0, len(refs))
	for id := range refs {
		msg, err := s.message(ctx, id)
		if errors.Is(err, realtime.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if taskID != "" && msg.TaskID != taskID {
			continue
		}
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].TimeStamp.Equal(messages[j].TimeStamp) {
			return messages[i].TimeStamp.Before(messages[j].TimeStamp)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// DeleteConversation removes the session user's entire history with
// partnerID. The partner keeps their copy.
func (s *Service) DeleteConversation(ctx context.Context, sess session.Session, partnerID string) error {
	if !sess.Valid() {
		return session.ErrUnauthenticated
	}
	var v validate.Collector
	v.ID("partner", partnerID)
	if err := v.Err(); err != nil {
		return err
	}
	if err := s.writer.DeleteConversation(ctx, sess.UserID, partnerID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if s.hub != nil {
		s.hub.Publish(sess.UserID, Event{Type: EventConversationDeleted, Data: map[string]string{"partner_id": partnerID}})
	}
	return nil
}

func (s *Service) message(ctx context.Context, id string) (models.Message, error) {
	if !validate.IsSegment(id) {
		return models.Message{}, realtime.ErrNotFound
	}
	v, err := s.store.Get(ctx, fanout.MessagePath(id))
	if err != nil {
		if errors.Is(err, realtime.ErrNotFound) {
			return models.Message{}, err
		}
		return models.Message{}, fmt.Errorf("read message %s: %w", id, err)
	}
	return models.DecodeMessage(id, v), nil
}

func (s *Service) user(ctx context.Context, uid string) (models.User, error) {
	v, err := s.store.Get(ctx, realtime.Join(models.UsersRef, uid))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.DecodeUser(uid, nil), nil
	}
	if err != nil {
		return models.User{}, fmt.Errorf("read user %s: %w", uid, err)
	}
	return models.DecodeUser(uid, v), nil
}
