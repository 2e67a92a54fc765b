package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/armada-dist/armada/internal/app"
	"github.com/armada-dist/armada/internal/debt"
	"github.com/armada-dist/armada/internal/delivery"
	"github.com/armada-dist/armada/internal/masterdata/drivers"
	"github.com/armada-dist/armada/internal/masterdata/products"
	"github.com/armada-dist/armada/internal/masterdata/stores"
	"github.com/armada-dist/armada/internal/observability"
	"github.com/armada-dist/armada/internal/orders"
	"github.com/armada-dist/armada/internal/platform/cache"
	"github.com/armada-dist/armada/internal/platform/db"
	"github.com/armada-dist/armada/internal/shared"
	"github.com/armada-dist/armada/internal/stock"
	"github.com/armada-dist/armada/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN, cfg.MigrationDir); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	stockRepo := stock.NewRepository(pool)
	balanceCache := stock.NewBalanceCache(redisClient, cfg.StockBalanceCacheTTL)
	stockService := stock.NewService(stockRepo, auditLogger, balanceCache, metrics, stock.ServiceConfig{
		AllowNegativeStock: cfg.StockAllowNegative,
	})
	stockHandler := stock.NewHandler(logger, stockService, idemStore)

	ordersRepo := orders.NewRepository(pool)
	ordersCoordinator := orders.NewCoordinator()
	ordersHandler := orders.NewHandler(logger, ordersRepo)

	deliveryRepo := delivery.NewRepository(pool)
	deliveryService := delivery.NewService(deliveryRepo, stockService, ordersCoordinator, auditLogger, metrics)
	deliveryHandler := delivery.NewHandler(logger, deliveryService)

	debtRepo := debt.NewRepository(pool)
	debtService := debt.NewService(debtRepo, auditLogger, debt.ServiceConfig{
		OverpaymentPolicy: debt.OverpaymentPolicy(cfg.DebtOverpaymentPolicy),
	})
	debtHandler := debt.NewHandler(logger, debtService)

	productsHandler := products.NewHandler(logger, products.NewService(products.NewRepository(pool)))
	storesHandler := stores.NewHandler(logger, stores.NewService(stores.NewRepository(pool)))
	driversHandler := drivers.NewHandler(logger, drivers.NewService(drivers.NewRepository(pool)))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		StockHandler:    stockHandler,
		DeliveryHandler: deliveryHandler,
		DebtHandler:     debtHandler,
		OrdersHandler:   ordersHandler,
		ProductsHandler: productsHandler,
		StoresHandler:   storesHandler,
		DriversHandler:  driversHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
