package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/instance"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
	"github.com/angelmondragon/foodrun-backend/pkg/migrate"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/registry"
	"github.com/angelmondragon/foodrun-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(serviceKind),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

// run wires the relay and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	// Shutdown must still be able to close connections after ctx ends.
	closeCtx := context.WithoutCancel(ctx)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(closeCtx, "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(closeCtx, "error closing pubsub client", err)
		}
	}()
	// The client caches publishers without locking, so every routed topic
	// is created here before the relay starts.
	topics := eventRegistry.Topics()
	for _, name := range topics {
		if pubsubClient.Publisher(name) == nil {
			return fmt.Errorf("no publisher for topic %q", name)
		}
	}

	promRegistry := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Outbox:   cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		Broker:   pubsubClient,
		Events:   outbox.NewRepository(dbClient.DB()),
		Registry: eventRegistry,
		DLQ:      outbox.NewDLQRepository(dbClient.DB()),
		Topics:   clientTopics{client: pubsubClient},
		Metrics:  metrics.NewOutboxMetrics(promRegistry),
	})
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	metrics.Serve(ctx, cfg.App.MetricsAddr, promRegistry, logg)
	logg.Info(logg.WithFields(ctx, map[string]any{"topics": topics}), "starting outbox publisher")
	return relay.Run(ctx)
}
