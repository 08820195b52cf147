// Package fanout keeps the denormalized indexes of the realtime keyspace in
// step with their primary records.
//
// A message lives at messages/{id} and is referenced from both participants'
// user-messages/{uid}/{partner}/{id} nodes and from the per-partner entry in
// user-conversations. Reviews and tasks are stored under their partition key
// only and need no secondary index.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/metrics"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

// Mode selects how the primary write and its back-references are issued.
type Mode string

const (
	// Atomic issues the primary record and its back-references as one
	// multi-path update.
	Atomic Mode = "atomic"
	// Independent issues every path as its own write, primary first, and
	// reports partial failure.
	Independent Mode = "independent"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Atomic, Independent:
		return m, nil
	case "":
		return Atomic, nil
	default:
		return "", fmt.Errorf("unknown fan-out mode %q", s)
	}
}

// Kind names the fan-out operation in results and metrics.
type Kind string

const (
	KindMessage            Kind = "message"
	KindReview             Kind = "review"
	KindTask               Kind = "task"
	KindTaskDelete         Kind = "task_delete"
	KindConversationDelete Kind = "conversation_delete"
)

// Result describes a finished fan-out.
type Result struct {
	Kind  Kind
	ID    string
	Paths []string
	Err   error
}

// Observer is notified after every fan-out, successful or not.
type Observer interface {
	OnWriteComplete(Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Result)

func (f ObserverFunc) OnWriteComplete(r Result) { f(r) }

// PartialWriteError reports a fan-out where some paths were written and
// others were not. Nothing is rolled back.
type PartialWriteError struct {
	Succeeded []string
	Failed    map[string]error
}

func (e *PartialWriteError) Error() string {
	failed := e.FailedPaths()
	return fmt.Sprintf("partial fan-out: %d written, %d failed (%s)",
		len(e.Succeeded), len(failed), strings.Join(failed, ", "))
}

// FailedPaths returns the failed paths in sorted order.
func (e *PartialWriteError) FailedPaths() []string {
	paths := make([]string, 0, len(e.Failed))
	for p := range e.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (e *PartialWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, p := range e.FailedPaths() {
		errs = append(errs, e.Failed[p])
	}
	return errs
}

// Writer performs fan-out writes against a realtime store.
type Writer struct {
	store    realtime.Store
	mode     Mode
	observer Observer
	logger   zerolog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithObserver registers o for completion callbacks.
func WithObserver(o Observer) Option {
	return func(w *Writer) { w.observer = o }
}

// NewWriter creates a writer. An empty mode means Atomic.
func NewWriter(store realtime.Store, mode Mode, opts ...Option) *Writer {
	if mode == "" {
		mode = Atomic
	}
	w := &Writer{
		store:  store,
		mode:   mode,
		logger: log.WithComponent("fanout"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mode returns the configured write mode.
func (w *Writer) Mode() Mode {
	return w.mode
}

type write struct {
	path  string
	value any
}

// writeSet tracks which paths of a fan-out landed.
type writeSet struct {
	succeeded []string
	failed    map[string]error
}

func (s *writeSet) ok(paths ...string) {
	s.succeeded = append(s.succeeded, paths...)
}

func (s *writeSet) fail(path string, err error) {
	if s.failed == nil {
		s.failed = map[string]error{}
	}
	s.failed[path] = err
}

func (s *writeSet) err() error {
	if len(s.failed) == 0 {
		return nil
	}
	return &PartialWriteError{Succeeded: s.succeeded, Failed: s.failed}
}

// apply writes the primary record (first entry) and its back-references.
// The primary failing aborts the fan-out with a plain error since nothing
// was written.
func (w *Writer) apply(ctx context.Context, writes []write, set *writeSet) error {
	if w.mode == Atomic {
		values := make(map[string]any, len(writes))
		paths := make([]string, 0, len(writes))
		for _, wr := range writes {
			values[wr.path] = wr.value
			paths = append(paths, wr.path)
		}
		if err := w.store.Update(ctx, values); err != nil {
			return fmt.Errorf("multi-path update: %w", err)
		}
		set.ok(paths...)
		return nil
	}

	primary := writes[0]
	if err := w.store.Set(ctx, primary.path, primary.value); err != nil {
		return fmt.Errorf("write %s: %w", primary.path, err)
	}
	set.ok(primary.path)
	for _, wr := range writes[1:] {
		if err := w.store.Set(ctx, wr.path, wr.value); err != nil {
			w.logger.Warn().Err(err).Str("path", wr.path).Msg("back-reference write failed")
			set.fail(wr.path, err)
			continue
		}
		set.ok(wr.path)
	}
	return nil
}

func (w *Writer) finish(kind Kind, id string, set *writeSet, err error) error {
	if err == nil {
		err = set.err()
	}
	metrics.FanoutWritesTotal.WithLabelValues(string(kind), metrics.Result(err)).Inc()
	if err != nil {
		w.logger.Error().Err(err).Str("kind", string(kind)).Str("id", id).Msg("fan-out failed")
	} else {
		w.logger.Debug().Str("kind", string(kind)).Str("id", id).Int("paths", len(set.succeeded)).Msg("fan-out complete")
	}
	if w.observer != nil {
		w.observer.OnWriteComplete(Result{Kind: kind, ID: id, Paths: set.succeeded, Err: err})
	}
	return err
}

// MessagePath is the primary location of a message.
func MessagePath(id string) string {
	return realtime.Join(models.MessagesRef, id)
}

// BackReferencePath is the per-partner index entry for a message.
func BackReferencePath(uid, partnerID, messageID string) string {
	return realtime.Join(models.UserMessagesRef, uid, partnerID, messageID)
}

// ConversationPath is the inbox entry uid keeps for partnerID.
func ConversationPath(uid, partnerID string) string {
	return realtime.Join(models.UserConversationsRef, uid, partnerID)
}

// TaskPath is the primary location of a task.
func TaskPath(ownerID, taskID string) string {
	return realtime.Join(models.TasksRef, ownerID, taskID)
}

// ReviewPath is the primary location of a review.
func ReviewPath(reviewedUserID, reviewID string) string {
	return realtime.Join(models.ReviewsRef, reviewedUserID, reviewID)
}

// WriteMessage stores m, both back-references and then advances both
// participants' conversation entries if m is the newest message between them.
func (w *Writer) WriteMessage(ctx context.Context, m models.Message) error {
	set := &writeSet{}
	stamp := models.Seconds(m.TimeStamp)
	writes := []write{
		{path: MessagePath(m.ID), value: m.Record()},
		{path: BackReferencePath(m.FromID, m.ToID, m.ID), value: stamp},
		{path: BackReferencePath(m.ToID, m.FromID, m.ID), value: stamp},
	}
	if err := w.apply(ctx, writes, set); err != nil {
		return w.finish(KindMessage, m.ID, set, err)
	}

	for _, uid := range []string{m.FromID, m.ToID} {
		path := ConversationPath(uid, m.ChatPartnerID(uid))
		if err := w.advanceConversation(ctx, path, models.EntryFor(uid, m)); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("conversation index update failed")
			set.fail(path, err)
			continue
		}
		set.ok(path)
	}
	return w.finish(KindMessage, m.ID, set, nil)
}

var errStale = errors.New("conversation entry is newer")

// advanceConversation replaces the entry at path only when entry is strictly
// newer than what is stored. An older or equal message leaves it unchanged.
func (w *Writer) advanceConversation(ctx context.Context, path string, entry models.ConversationEntry) error {
	err := w.store.Transaction(ctx, path, func(current any) (any, error) {
		if current != nil {
			existing := models.DecodeConversationEntry(entry.PartnerID, current)
			if existing.MessageID != "" && !entry.TimeStamp.After(existing.TimeStamp) {
				return nil, errStale
			}
		}
		return entry.Record(), nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	return err
}

// WriteReview stores r under the reviewed user.
func (w *Writer) WriteReview(ctx context.Context, r models.Review) error {
	set := &writeSet{}
	err := w.apply(ctx, []write{{path: ReviewPath(r.ReviewedUserID, r.ID), value: r.Record()}}, set)
	return w.finish(KindReview, r.ID, set, err)
}

// WriteTask stores t under its owner.
func (w *Writer) WriteTask(ctx context.Context, t models.Task) error {
	set := &writeSet{}
	err := w.apply(ctx, []write{{path: TaskPath(t.UserID, t.ID), value: t.Record()}}, set)
	return w.finish(KindTask, t.ID, set, err)
}

// DeleteTask removes a task record. Ownership is checked by the caller.
func (w *Writer) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	set := &writeSet{}
	path := TaskPath(ownerID, taskID)
	err := w.store.Delete(ctx, path)
	if err == nil {
		set.ok(path)
	}
	return w.finish(KindTaskDelete, taskID, set, err)
}

// DeleteConversation removes uid's whole history with partnerID: every
// back-reference and the inbox entry. The partner's view and the message
// records themselves are left in place.
func (w *Writer) DeleteConversation(ctx context.Context, uid, partnerID string) error {
	set := &writeSet{}
	writes := []write{
		{path: realtime.Join(models.UserMessagesRef, uid, partnerID)},
		{path: ConversationPath(uid, partnerID)},
	}
	err := w.apply(ctx, writes, set)
	return w.finish(KindConversationDelete, partnerID, set, err)
}

// RebuildConversations recomputes uid's conversation index from the
// back-references and returns the number of entries written. Entries for
// partners with no remaining back-references are removed.
func (w *Writer) RebuildConversations(ctx context.Context, uid string) (int, error) {
	partners, err := realtime.Children(ctx, w.store, realtime.Join(models.UserMessagesRef, uid))
	if err != nil {
		return 0, fmt.Errorf("read back-references: %w", err)
	}

	values := map[string]any{}
	for partnerID, refs := range partners {
		ids, _ := refs.(map[string]any)
		var newest *models.Message
		for id := range ids {
			v, err := w.store.Get(ctx, MessagePath(id))
			if errors.Is(err, realtime.ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("read message %s: %w", id, err)
			}
			m := models.DecodeMessage(id, v)
			if newest == nil || m.TimeStamp.After(newest.TimeStamp) {
				newest = &m
			}
		}
		if newest != nil {
			values[ConversationPath(uid, partnerID)] = models.EntryFor(uid, *newest).Record()
		}
	}

	existing, err := realtime.Children(ctx, w.store, realtime.Join(models.UserConversationsRef, uid))
	if err != nil {
		return 0, fmt.Errorf("read conversation index: %w", err)
	}
	for partnerID := range existing {
		path := ConversationPath(uid, partnerID)
		if _, ok := values[path]; !ok {
			values[path] = nil
		}
	}

	if len(values) == 0 {
		return 0, nil
	}
	if err := w.store.Update(ctx, values); err != nil {
		return 0, fmt.Errorf("write conversation index: %w", err)
	}
	written := 0
	for _, v := range values {
		if v != nil {
			written++
		}
	}
	return written, nil
}
