package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/k10r/paymill-shopware/internal/infrastructure/audit"
	"github.com/k10r/paymill-shopware/internal/infrastructure/lock"
	"github.com/k10r/paymill-shopware/internal/infrastructure/paymill"
	"github.com/k10r/paymill-shopware/internal/infrastructure/persistence/postgres"
	"github.com/k10r/paymill-shopware/internal/interfaces/rest/handlers"
	"github.com/k10r/paymill-shopware/internal/interfaces/rest/middleware"
	"github.com/k10r/paymill-shopware/internal/logging"
	"github.com/k10r/paymill-shopware/internal/metrics"
	"github.com/k10r/paymill-shopware/internal/orchestrator"
	"github.com/k10r/paymill-shopware/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting paymill gateway",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	customerRepo := postgres.NewCustomerRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	coordinator := postgres.NewTransactionCoordinator(db)

	healthChecks := map[string]handlers.HealthCheck{
		"postgres": db.Ping,
	}

	var guard application.AttemptGuard = lock.NopGuard{}
	var orderLocks application.AttemptGuard = lock.NopGuard{}
	if cfg.Redis.Addr != "" {
		redisClient, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		guard = lock.NewRedisGuard(redisClient, cfg.Redis)
		orderLocks = lock.NewOrderGuard(redisClient, cfg.Redis)
		healthChecks["redis"] = pingRedis(redisClient)
	} else {
		logger.Warn("redis not configured, checkout attempt guard and order locks disabled")
	}

	diagnostics := []orchestrator.Logger{logging.NewSlogLogger(logger)}

	if cfg.Logger.Zap {
		zapLogger, err := logging.NewZap(cfg.Logger, cfg.Primary.Env)
		if err != nil {
			logger.Error("failed to build zap logger", "error", err)
			os.Exit(1)
		}
		defer func() { _ = zapLogger.Sync() }()

		diagnostics = append(diagnostics, logging.NewZapLogger(zapLogger))
	}

	if cfg.Audit.Table != "" {
		dynamoClient, err := audit.NewDynamoClient(ctx, cfg.Audit)
		if err != nil {
			logger.Error("failed to build dynamodb client", "error", err)
			os.Exit(1)
		}

		diagnostics = append(diagnostics, audit.NewDynamoLogger(dynamoClient, cfg.Audit.Table))
		logger.Info("payment audit log enabled", "table", cfg.Audit.Table)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	clients, breakers, err := paymill.NewClients(cfg, m, logger)
	if err != nil {
		logger.Error("failed to build gateway clients", "error", err)
		os.Exit(1)
	}
	healthChecks["paymill"] = breakers.Check

	orch := orchestrator.New(clients,
		orchestrator.WithLogger(logging.Multi(diagnostics...)),
		orchestrator.WithPreauthorizeOnMismatch(cfg.Checkout.PreauthorizeOnMismatch),
	)

	checkoutService := services.NewCheckoutService(orch, customerRepo, orderRepo, coordinator, guard, orderLocks, m, logger, cfg.Paymill.Source)
	captureService := services.NewCaptureService(orch, customerRepo, orderRepo, orderLocks, m, logger, cfg.Paymill.Source)
	cancelService := services.NewCancelService(orderRepo, orderLocks, logger)
	queryService := services.NewQueryService(orderRepo, clients.Transactions)

	h := handlers.NewHandlers(
		checkoutService,
		captureService,
		cancelService,
		queryService,
		healthChecks,
		logger,
	)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	router := http.Handler(mux)

	handler := middleware.Recovery(logger)(router)
	handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("paymill-gateway")(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if cfg.Worker.Enabled {
		expirationWorker := worker.NewExpirationWorker(
			orderRepo,
			clients.Preauthorizations,
			cfg.Worker.Interval,
			cfg.Worker.MaxAge,
			cfg.Worker.BatchSize,
			logger,
		)
		go expirationWorker.Start(workerCtx)
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

func pingRedis(client *redis.Client) handlers.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
