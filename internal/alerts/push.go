package alerts

import (
	"context"
	"errors"
	"fmt"

	fcm "firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/log"
)

// ErrNoToken is returned when a push has no device token to address.
var ErrNoToken = errors.New("push: missing device token")

// Sender delivers a push notification to one device.
type Sender interface {
	Send(ctx context.Context, p Push) error
}

// LogSender writes pushes to the log instead of delivering them. It is the
// default for local development.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: log.WithComponent("push")}
}

func (s *LogSender) Send(_ context.Context, p Push) error {
	if p.Token == "" {
		return ErrNoToken
	}
	s.logger.Info().
		Str("title", p.Title).
		Str("body", p.Body).
		Interface("data", p.Data).
		Msg("push")
	return nil
}

// fcmClient is the part of *messaging.Client FCMSender uses.
type fcmClient interface {
	Send(ctx context.Context, message *fcm.Message) (string, error)
}

// FCMSender delivers pushes through Firebase Cloud Messaging.
type FCMSender struct {
	client fcmClient
}

func NewFCMSender(client *fcm.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, p Push) error {
	if p.Token == "" {
		return ErrNoToken
	}
	_, err := s.client.Send(ctx, &fcm.Message{
		Token: p.Token,
		Notification: &fcm.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
