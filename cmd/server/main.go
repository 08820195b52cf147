package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/juggle/internal/alerts"
	"github.com/sudo-init-do/juggle/internal/bootstrap"
	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/server"
	"github.com/sudo-init-do/juggle/internal/trigger"
	"github.com/sudo-init-do/juggle/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", err)
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required", errors.New("missing JWT_SECRET"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.FirebaseApp(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init firebase", err)
	}
	base, err := bootstrap.OpenStore(ctx, cfg, app)
	if err != nil {
		log.Fatal("failed to open store", err)
	}
	defer base.Close()

	// Creates of messages and reviews are published to the relay queue.
	var store realtime.Store = base
	if cfg.TriggersEnabled {
		broker := trigger.NewBroker()
		broker.Start()
		defer broker.Stop()

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()

		sub := broker.Subscribe()
		go alerts.NewDispatcher(client).Run(ctx, sub)
		store = trigger.NewStore(base, broker, trigger.DefaultTemplates()...)
		log.Info("triggers enabled, pushes go to " + cfg.RedisAddr)
	}

	images, err := bootstrap.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init image storage", err)
	}

	fanoutLog := log.WithComponent("fanout")
	e, err := server.New(server.Deps{
		Config: cfg,
		Store:  store,
		Tokens: utils.NewJWT(cfg.JWTSecret, cfg.TokenTTL),
		Images: images,
		Observer: fanout.ObserverFunc(func(r fanout.Result) {
			if r.Err != nil {
				fanoutLog.Error().Err(r.Err).Str("kind", string(r.Kind)).Str("id", r.ID).Msg("fan-out write failed")
			}
		}),
	})
	if err != nil {
		log.Fatal("failed to build server", err)
	}

	go func() {
		log.Info("listening on :" + cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed", err)
	}
}
