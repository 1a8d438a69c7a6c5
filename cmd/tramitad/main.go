package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"tramita/internal/api"
	"tramita/internal/audit"
	"tramita/internal/config"
	"tramita/internal/daemon"
	"tramita/internal/deliver"
	"tramita/internal/fanout"
	"tramita/internal/logging"
	"tramita/internal/permissions"
	"tramita/internal/readstate"
	"tramita/internal/recipients"
	"tramita/internal/store"
	"tramita/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}
	defer st.Close()

	perms := permissions.NewEngine(logger)
	resolver := recipients.NewResolver(st, logger)
	dispatcher := deliver.NewDispatcher(logger,
		deliver.NewPushChannel(cfg.Notifications.PushEndpoint,
			time.Duration(cfg.Notifications.RequestTimeout)*time.Second),
		deliver.NewEmailChannel(cfg.Notifications.EmailEnabled, cfg.Notifications.EmailFrom, logger),
	)
	recorder := audit.NewRecorder(st, logger)
	notifier := fanout.NewService(st, resolver, dispatcher, recorder, logger,
		fanout.WithDefaultExpiry(time.Duration(cfg.Notifications.DefaultExpiryDays)*24*time.Hour))
	wf := workflow.New(st, perms, notifier, recorder, logger)
	tracker := readstate.NewTracker(st, logger)

	service := api.NewService(st, perms, notifier, wf, tracker, logger)
	server := api.NewServer(cfg, service, logger)

	d, err := daemon.New(cfg, st, server, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	defer d.Stop()

	<-ctx.Done()
	logger.Info("tramitad shutting down")
}
