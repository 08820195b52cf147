package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/juggle/internal/alerts"
	"github.com/sudo-init-do/juggle/internal/bootstrap"
	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", err)
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.FirebaseApp(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init firebase", err)
	}
	store, err := bootstrap.OpenStore(ctx, cfg, app)
	if err != nil {
		log.Fatal("failed to open store", err)
	}
	defer store.Close()

	sender, err := bootstrap.NewSender(ctx, cfg, app)
	if err != nil {
		log.Fatal("failed to init push sender", err)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.RelayConcurrency,
			Queues:      map[string]int{alerts.QueuePush: 1},
		},
	)

	mux := asynq.NewServeMux()
	alerts.NewRelay(store, sender).Register(mux)

	if err := srv.Start(mux); err != nil {
		log.Fatal("failed to start relay", err)
	}
	log.Info("relay consuming queue " + alerts.QueuePush)

	<-ctx.Done()
	srv.Shutdown()
}
