package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"folio/internal/capture"
	"folio/internal/config"
	"folio/internal/daemon"
	"folio/internal/importer"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/materialize"
	"folio/internal/notifications"
	"folio/internal/recognize"
	"folio/internal/session"
	"folio/internal/translation"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
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

	store, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return
	}

	notifier := notifications.NewService(cfg)
	sessions := session.NewRegistry(store, cfg, logger)

	var recognizer recognize.Recognizer
	if cfg.Recognizer.Enabled {
		recognizer = recognize.NewHTTPRecognizer(cfg)
	}
	recognitions := recognize.NewQueue(store, recognizer, notifier, cfg, logger)

	fetcher := materialize.NewFetcher(cfg)
	materializer := materialize.New(store, fetcher, recognitions, cfg, logger)
	dispatcher := capture.New(store, sessions, materializer, translation.NewRegistry(), importer.NewRegistry(), notifier, cfg, logger)

	d, err := daemon.New(cfg, store, sessions, recognitions, dispatcher, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("foliod shutting down")
}
