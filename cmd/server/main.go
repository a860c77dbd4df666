package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"export-import-service/config"
	"export-import-service/internal/api"
	"export-import-service/internal/broker"
	"export-import-service/internal/memstore"
	"export-import-service/internal/mongostore"
	"export-import-service/internal/redisclient"
	"export-import-service/internal/service"
	"export-import-service/internal/store"
	"export-import-service/internal/util"
	"export-import-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting export-import service",
		zap.String("env", cfg.Server.Env),
		zap.String("store", cfg.Store.Driver))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store connected", zap.String("driver", cfg.Store.Driver))

	var (
		cache       service.DashboardCache
		idempotency service.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cache = redisClient
		idempotency = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher service.EventPublisher = broker.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicLedger))
	}

	opts := service.Options{
		StoreTimeout:        cfg.Store.Timeout,
		DashboardCacheTTL:   cfg.Redis.DashboardCacheTTL,
		IdempotencyTTL:      cfg.Redis.IdempotencyTTL,
		IdempotencyClaimTTL: cfg.Redis.IdempotencyClaim,
	}
	ledgerService := service.NewLedgerService(db, cache, idempotency, publisher, opts)
	dashboardService := service.NewDashboardService(db, cache, opts)
	exportService := service.NewExportService(db, cache, publisher, opts)
	productService := service.NewProductService(db, opts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var ledgerWorker *worker.LedgerEventWorker
	if cfg.Kafka.Enabled && cache != nil {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger, cfg.Kafka.ConsumerGroup)
		ledgerWorker = worker.NewLedgerEventWorker(consumer, dashboardService)
		go func() {
			if err := ledgerWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Ledger event worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ledgerService, dashboardService, exportService, productService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if ledgerWorker != nil {
		_ = ledgerWorker.Stop()
	}

	logger.Info("Server exited")
}

func openStore(cfg *config.Config) (service.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return db, nil
	case config.DriverMongo:
		ms, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return ms, nil
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}
