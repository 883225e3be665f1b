package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodrun-backend/api/routes"
	"github.com/angelmondragon/foodrun-backend/internal/commission"
	"github.com/angelmondragon/foodrun-backend/internal/ledger"
	"github.com/angelmondragon/foodrun-backend/internal/notifications"
	"github.com/angelmondragon/foodrun-backend/internal/orders"
	"github.com/angelmondragon/foodrun-backend/internal/payments"
	"github.com/angelmondragon/foodrun-backend/internal/points"
	"github.com/angelmondragon/foodrun-backend/internal/refunds"
	"github.com/angelmondragon/foodrun-backend/internal/restaurants"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/migrate"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := wire(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

// wire builds the domain services in dependency order.
func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	notifier, err := notifications.NewNotifier(emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}

	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	walletSvc, err := wallets.NewService(wallets.NewRepository(conn), ledgerRepo, ledgerSvc, dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	refunder, err := refunds.NewService(ledgerSvc, walletSvc, emitter, notifier, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	rates, err := cfg.Commission.Rates()
	if err != nil {
		return routes.Dependencies{}, err
	}
	calc, err := commission.NewCalculator(commission.RatesFromConfig(rates))
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersRepo := orders.NewRepository(conn)
	referrals := restaurants.NewReferralRepository(conn)
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, emitter, notifier, walletSvc, refunder, calc, referrals, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	pointsSvc, err := points.NewService(points.NewRepository(conn), dbClient, emitter, notifier, cfg.Points, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	paymentsSvc, err := payments.NewService(ordersRepo, walletSvc, dbClient, emitter, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := payments.NewIdempotencyGuard(redisClient, cfg.Payments.IdempotencyTTL, "payments-captured")
	if err != nil {
		return routes.Dependencies{}, err
	}
	processor, err := payments.NewWebhookProcessor(paymentsSvc, guard, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Gatherer:    prometheus.DefaultGatherer,
		Orders:      ordersSvc,
		Wallets:     walletSvc,
		Points:      pointsSvc,
		Referrals:   referrals,
		Payments:    processor,
	}, nil
}
