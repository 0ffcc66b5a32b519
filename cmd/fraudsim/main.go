package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fraudsim/internal/alerts"
	"fraudsim/internal/api"
	"fraudsim/internal/config"
	"fraudsim/internal/ingest"
	"fraudsim/internal/lockout"
	"fraudsim/internal/logging"
	"fraudsim/internal/model"
	"fraudsim/internal/notify"
	"fraudsim/internal/pipeline"
	"fraudsim/internal/scoring"
	"fraudsim/internal/stats"
	"fraudsim/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fraudsim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		manager *config.Manager
		err     error
	)
	if configPath != "" {
		manager, err = config.NewManager(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		manager = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := manager.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting fraudsim",
		"version", version,
		"config", manager.Path(),
		"storage_driver", cfg.Storage.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	lockouts := lockout.NewManager(store, cfg.Lockout, logger)
	scorer := scoring.NewHTTPScorer(cfg.Scorer)

	var notifier notify.Notifier
	if cfg.Alerts.WebhookURL != "" {
		logger.Info("fraud alerts via webhook", "url", cfg.Alerts.WebhookURL)
		notifier = notify.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	alertStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	statsStore := stats.NewStore()

	pipe := pipeline.New(cfg, store, lockouts, scorer, notifier, alertStore, statsStore, logger)

	transactions := make(chan model.Transaction, cfg.Ingest.ChannelBuffer)
	pipe.Run(ctx, transactions)
	ingest.StartKafka(ctx, manager, transactions, logger)

	api.Start(ctx, manager, pipe, store, lockouts, alertStore, statsStore, logger, version)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
