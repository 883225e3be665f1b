package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodrun-backend/internal/cron"
	"github.com/angelmondragon/foodrun-backend/internal/ledger"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/instance"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
	"github.com/angelmondragon/foodrun-backend/pkg/migrate"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/redis"
)

const (
	serviceKind        = "cron-worker"
	reconcileBatchSize = 200
)

func main() {
	once := flag.String("once", "", "run the named job a single time and exit")
	list := flag.Bool("list", false, "print the registered job names and exit")
	flag.Parse()

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

	if err := run(ctx, cfg, logg, *once, *list); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once string, list bool) error {
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

	promRegistry := prometheus.NewRegistry()
	jobs, err := buildJobs(cfg, logg, dbClient, metrics.NewLedgerMetrics(promRegistry))
	if err != nil {
		return fmt.Errorf("build jobs: %w", err)
	}
	registry := cron.NewRegistry(jobs...)
	if list {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		return nil
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(closeCtx, "error closing redis", err)
		}
	}()
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronMetrics(promRegistry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if once != "" {
		return service.RunJob(logg.WithField(ctx, "job", once), once)
	}
	metrics.Serve(ctx, cfg.App.MetricsAddr, promRegistry, logg)
	logg.Info(logg.WithFields(ctx, map[string]any{"jobs": registry.Names()}), "starting cron worker")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, ledgerMetrics *metrics.LedgerMetrics) ([]cron.Job, error) {
	conn := dbClient.DB()
	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return nil, err
	}
	walletSvc, err := wallets.NewService(wallets.NewRepository(conn), ledgerRepo, ledgerSvc, dbClient, logg)
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:    logg,
		Wallets:   walletSvc,
		Metrics:   ledgerMetrics,
		BatchSize: reconcileBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:            logg,
		DB:                dbClient,
		Repository:        outbox.NewRepository(conn),
		Retention:         cfg.Outbox.Retention,
		ExhaustedAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{reconcile, retention}, nil
}
