package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glowcart/glowcart-backend/api/routes"
	"github.com/glowcart/glowcart-backend/internal/assignment"
	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/checkout"
	"github.com/glowcart/glowcart-backend/internal/commissions"
	"github.com/glowcart/glowcart-backend/internal/deliveries"
	"github.com/glowcart/glowcart-backend/internal/drivers"
	"github.com/glowcart/glowcart-backend/internal/inventory"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/internal/payments"
	squarewebhook "github.com/glowcart/glowcart-backend/internal/webhooks/square"
	"github.com/glowcart/glowcart-backend/pkg/config"
	"github.com/glowcart/glowcart-backend/pkg/db"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/migrate"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/redis"
	"github.com/glowcart/glowcart-backend/pkg/routing"
	"github.com/glowcart/glowcart-backend/pkg/square"
)

const webhookDedupeTTL = 7 * 24 * time.Hour

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

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	// Without a Routes API key, assignment falls back to the configured ETA.
	var routingClient *routing.Client
	if cfg.Routing.APIKey != "" {
		routingClient, err = routing.NewClient(cfg.Routing.APIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap routing client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "routing api key not set, using fallback delivery ETA")
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	commissionRate, err := cfg.Commission.Rate()
	if err != nil {
		logg.Error(context.Background(), "invalid commission rate", err)
		os.Exit(1)
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

	orderSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, auditSvc, pipelineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	verifier, err := payments.NewVerifier(payments.NewRepository(gormDB), squareClient, auditSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	inventorySvc := inventory.NewService()

	commissionsSvc, err := commissions.NewService(commissions.NewRepository(gormDB), outboxSvc, commissionRate, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commissions service", err)
		os.Exit(1)
	}

	notifySvc, err := notifications.NewService(notifications.NewRepository(gormDB), logg, pipelineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	driversSvc, err := drivers.NewService(driversRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create drivers service", err)
		os.Exit(1)
	}

	deliveriesSvc, err := deliveries.NewService(deliveriesRepo, orderSvc, dbClient, outboxSvc, auditSvc, commissionsSvc, notifySvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
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

	checkoutSvc, err := checkout.NewService(
		ordersRepo, orderSvc, verifier, inventorySvc, commissionsSvc,
		notifySvc, checkout.PassthroughOwnerDirectory{},
		dbClient, outboxSvc, auditSvc, logg, pipelineMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookSvc, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		OrdersRepo:        ordersRepo,
		OrderService:      orderSvc,
		Verifier:          verifier,
		Inventory:         inventorySvc,
		Commissions:       commissionsSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, webhookDedupeTTL, "square-events")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Registry:   registry,
			SquareCli:  squareClient,
			WebhookSvc: webhookSvc,
			Guard:      webhookGuard,
			Checkout:   checkoutSvc,
			Orders:     orderSvc,
			Deliveries: deliveriesSvc,
			Drivers:    driversSvc,
			Assignment: assignmentSvc,
			Notify:     notifySvc,
			Audit:      auditSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
