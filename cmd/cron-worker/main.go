package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glowcart/glowcart-backend/internal/assignment"
	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/cron"
	"github.com/glowcart/glowcart-backend/internal/deliveries"
	"github.com/glowcart/glowcart-backend/internal/drivers"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/pkg/config"
	"github.com/glowcart/glowcart-backend/pkg/db"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/migrate"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/redis"
	"github.com/glowcart/glowcart-backend/pkg/routing"
)

const lockKeyFormat = "gc:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	var routingClient *routing.Client
	if cfg.Routing.APIKey != "" {
		routingClient, err = routing.NewClient(cfg.Routing.APIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap routing client", err)
			os.Exit(1)
		}
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	driversRepo := drivers.NewRepository(gormDB)
	deliveriesRepo := deliveries.NewRepository(gormDB)

	auditSvc, err := audit.NewService(audit.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	orderSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, auditSvc, pipelineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	notifySvc, err := notifications.NewService(notifications.NewRepository(gormDB), logg, pipelineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	assignmentSvc, err := assignment.NewService(
		ordersRepo, driversRepo, deliveriesRepo,
		orderSvc, dbClient, outboxSvc, auditSvc,
		routingClient, assignment.NoStoreDirectory{}, notifySvc,
		cfg.Assignment, logg, pipelineMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	retryJob, err := cron.NewAssignmentRetryJob(cron.AssignmentRetryJobParams{
		Logger:   logg,
		Orders:   ordersRepo,
		Assigner: assignmentSvc,
		MinAge:   cfg.Assignment.RetryMinAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment retry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Assignment.RetryInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
