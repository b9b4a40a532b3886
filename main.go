package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookiebarrel/internal/config"
	"cookiebarrel/internal/database"
	"cookiebarrel/internal/events"
	"cookiebarrel/internal/handlers"
	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/repositories"
	"cookiebarrel/internal/repositories/memory"
	"cookiebarrel/internal/repositories/mongodb"
	"cookiebarrel/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.Load()
	cfg := config.AppEnv
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("datastore unavailable", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("datastore close failed", zap.Error(err))
		}
	}()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrdersTopic)
		logger.Info("order events enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.OrdersTopic),
		)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close failed", zap.Error(err))
		}
	}()

	orders, err := buildOrderService(ctx, cfg, store, publisher, metrics, logger)
	if err != nil {
		logger.Fatal("order service setup failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterDeps{
		Orders:    orders,
		Store:     store,
		Metrics:   metrics,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		Timeout:   cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}

func openStore(cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	registry := mongodb.NewRegistry(client, cfg.DBName, mongodb.Options{UseTransactions: cfg.UseTransaction})
	logger.Info("mongodb connected", zap.String("database", cfg.DBName), zap.Bool("transactions", cfg.UseTransaction))

	if err := database.EnsureOrderIndexes(registry.Database(), logger); err != nil {
		logger.Warn("order index setup failed", zap.Error(err))
	}
	return registry, nil
}

func buildOrderService(
	ctx context.Context,
	cfg config.Config,
	store repositories.Registry,
	publisher events.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*services.OrderService, error) {
	tracer := observability.Tracer()

	stock, err := services.NewStockService(services.StockServiceDeps{
		Products: store.Products(),
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	if err != nil {
		return nil, err
	}

	numbers, err := services.NewOrderNumberGenerator(services.OrderNumberGeneratorDeps{
		Counters: store.Counters(),
		Orders:   store.Orders(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := numbers.Sync(syncCtx); err != nil {
		return nil, err
	}

	return services.NewOrderService(services.OrderServiceDeps{
		Orders:     store.Orders(),
		UnitOfWork: store,
		Stock:      stock,
		Numbers:    numbers,
		Pricing: services.NewCalculator(services.PricingConfig{
			FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
			DeliveryFee:           cfg.DeliveryFee,
			TaxRate:               cfg.TaxRate,
		}),
		Machine:  services.NewStateMachine(services.TransitionPolicy(cfg.StaffTransition)),
		Events:   publisher,
		Metrics:  metrics,
		Logger:   logger,
		Tracer:   tracer,
		LeadTime: cfg.DeliveryLeadTime,
	})
}
