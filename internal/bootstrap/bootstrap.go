// Package bootstrap builds the backends selected by configuration. Both
// binaries share it so the API server and the relay always agree on where
// the tree lives.
package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/sudo-init-do/juggle/internal/alerts"
	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/db"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/media"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

// FirebaseApp initialises the Firebase app, or returns nil when neither the
// store nor the push sender needs it.
func FirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if !cfg.NeedsFirebase() {
		return nil, nil
	}
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.FirebaseDatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	return app, nil
}

// OpenStore opens the realtime store backend named by STORE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App) (realtime.Store, error) {
	logger := log.WithComponent("bootstrap")
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn().Msg("using the in-memory store; data is lost on restart")
		return realtime.NewMemoryStore(), nil
	case config.BackendBolt:
		s, err := realtime.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.BoltPath).Msg("opened bolt store")
		return s, nil
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, err
		}
		return realtime.NewPostgresStore(pool), nil
	case config.BackendFirebase:
		if app == nil {
			return nil, fmt.Errorf("firebase backend selected without a firebase app")
		}
		client, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase database: %w", err)
		}
		logger.Info().Str("url", cfg.FirebaseDatabaseURL).Msg("using firebase realtime database")
		return realtime.NewFirebaseStore(client), nil
	}
	return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
}

// NewSender returns the push sender named by PUSH_PROVIDER.
func NewSender(ctx context.Context, cfg *config.Config, app *firebase.App) (alerts.Sender, error) {
	if cfg.PushProvider != "fcm" {
		return alerts.NewLogSender(), nil
	}
	if app == nil {
		return nil, fmt.Errorf("fcm push provider selected without a firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firebase messaging: %w", err)
	}
	return alerts.NewFCMSender(client), nil
}

// NewStorage returns the profile image storage. Without S3 settings it is
// disabled rather than failing startup.
func NewStorage(ctx context.Context, cfg *config.Config) (*media.S3Storage, error) {
	return media.NewS3Storage(ctx, cfg, log.Logger)
}
