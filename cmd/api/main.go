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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shiftledger/api/routes"
	"github.com/angelmondragon/shiftledger/internal/ledger"
	"github.com/angelmondragon/shiftledger/internal/notifications"
	"github.com/angelmondragon/shiftledger/internal/shifts"
	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/instance"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/metrics"
	"github.com/angelmondragon/shiftledger/pkg/migrate"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
	"github.com/angelmondragon/shiftledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/shiftledger/pkg/redis"
	"github.com/angelmondragon/shiftledger/pkg/telegram"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shiftMetrics := metrics.NewShiftMetrics(registry)

	feed, err := shifts.NewRedisChangeFeed(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create change feed", err)
		os.Exit(1)
	}

	saleDedup, err := idempotency.NewManager(redisClient, cfg.Shifts.SaleDedupTTL)
	if err != nil {
		logg.Error(ctx, "failed to create sale dedup", err)
		os.Exit(1)
	}

	notificationRepo := notifications.NewRepository(dbClient.DB())
	var notifier shifts.ShiftNotifier
	var notificationService *notifications.Service
	if cfg.FeatureFlags.Notifications {
		notificationService, err = notifications.NewService(notifications.ServiceParams{
			Settings: notificationRepo,
			Notifier: notifications.NewTelegramNotifier(telegram.NewClient(cfg.Telegram), logg),
			Logger:   logg,
			Metrics:  shiftMetrics,
			Location: loadLocation(ctx, logg, cfg.Shifts.Timezone),
		})
		if err != nil {
			logg.Error(ctx, "failed to create notification service", err)
			os.Exit(1)
		}
		notifier = notificationService
	}

	shiftRepo := shifts.NewRepository(dbClient.DB())
	engine, err := shifts.NewEngine(shifts.EngineParams{
		Repo:     shiftRepo,
		DB:       dbClient,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:   logg,
		Feed:     feed,
		Notifier: notifier,
		Sales:    saleDedup,
		Metrics:  shiftMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create shift engine", err)
		os.Exit(1)
	}

	observer, err := shifts.NewObserver(shiftRepo, feed, logg)
	if err != nil {
		logg.Error(ctx, "failed to create shift observer", err)
		os.Exit(1)
	}

	deadLetters := outbox.NewDLQRepository(dbClient.DB())
	replayer, err := outbox.NewReplayer(dbClient, deadLetters, logg)
	if err != nil {
		logg.Error(ctx, "failed to create dlq replayer", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:            dbClient,
			Redis:         redisClient,
			Idempotency:   redisClient,
			Engine:        engine,
			Observer:      observer,
			Ledger:        ledger.NewRepository(dbClient.DB()),
			Notifications: notificationRepo,
			DeadLetters:   deadLetters,
			Replayer:      replayer,
			Gatherer:      registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "api server shutdown failed", err)
		}
		if notificationService != nil {
			if err := notificationService.Close(shutdownCtx); err != nil {
				logg.Warn(serverCtx, "pending shift notifications abandoned")
			}
		}
	}
}

func loadLocation(ctx context.Context, logg *logger.Logger, name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logg.Warn(ctx, "unknown notification timezone "+name+", using UTC")
		return time.UTC
	}
	return loc
}
