// Package trigger raises events when records are created in the realtime
// store, the way the hosted database's onCreate functions do.
package trigger

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/metrics"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

// Template matches store paths such as "messages/{messageId}". Braced
// segments capture a parameter; other segments must match literally.
type Template struct {
	Kind     Kind
	segments []string
}

func NewTemplate(kind Kind, pattern string) Template {
	return Template{Kind: kind, segments: strings.Split(strings.Trim(pattern, "/"), "/")}
}

// Match returns the captured parameters when path has exactly the shape of
// the template.
func (t Template) Match(path string) (map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(t.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range t.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if parts[i] == "" {
				return nil, false
			}
			params[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// DefaultTemplates are the creates the notification relay listens for.
func DefaultTemplates() []Template {
	return []Template{
		NewTemplate(KindMessageCreated, models.MessagesRef+"/{messageId}"),
		NewTemplate(KindReviewCreated, models.ReviewsRef+"/{reviewedUserId}/{reviewId}"),
	}
}

// Store decorates a realtime.Store and publishes an event for every write
// that creates a record at a watched path. Overwrites of existing records
// and deletes do not fire.
type Store struct {
	realtime.Store
	broker    *Broker
	templates []Template
	logger    zerolog.Logger
}

func NewStore(inner realtime.Store, broker *Broker, templates ...Template) *Store {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	return &Store{
		Store:     inner,
		broker:    broker,
		templates: templates,
		logger:    log.WithComponent("trigger"),
	}
}

type pending struct {
	kind   Kind
	path   string
	params map[string]string
}

// watched returns the writes in values that would create a watched record.
func (s *Store) watched(ctx context.Context, values map[string]any) []pending {
	var out []pending
	for path, value := range values {
		if value == nil {
			continue
		}
		if m, ok := value.(map[string]any); ok && len(m) == 0 {
			continue
		}
		for _, t := range s.templates {
			params, ok := t.Match(path)
			if !ok {
				continue
			}
			exists, err := realtime.Exists(ctx, s.Store, path)
			if err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("existence check failed, not firing")
				break
			}
			if !exists {
				out = append(out, pending{kind: t.Kind, path: strings.Trim(path, "/"), params: params})
			}
			break
		}
	}
	return out
}

func (s *Store) fire(events []pending) {
	for _, p := range events {
		metrics.TriggerEventsTotal.WithLabelValues(string(p.kind)).Inc()
		s.broker.Publish(&Event{Kind: p.kind, Path: p.path, Params: p.params})
	}
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	events := s.watched(ctx, map[string]any{path: value})
	if err := s.Store.Set(ctx, path, value); err != nil {
		return err
	}
	s.fire(events)
	return nil
}

func (s *Store) Update(ctx context.Context, values map[string]any) error {
	events := s.watched(ctx, values)
	if err := s.Store.Update(ctx, values); err != nil {
		return err
	}
	s.fire(events)
	return nil
}
