package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/eta"
	"orderdesk/internal/httpserver"
	"orderdesk/internal/idempotency"
	"orderdesk/internal/logging"
	"orderdesk/internal/notify"
	"orderdesk/internal/pricing"
	basketrepo "orderdesk/internal/repository/basket"
	blackoutrepo "orderdesk/internal/repository/blackout"
	customerrepo "orderdesk/internal/repository/customer"
	orderrepo "orderdesk/internal/repository/order"
	productrepo "orderdesk/internal/repository/product"
	statusrepo "orderdesk/internal/repository/status"
	tokenrepo "orderdesk/internal/repository/token"
	basketsvc "orderdesk/internal/service/basket"
	"orderdesk/internal/service/cartauth"
	catalogsvc "orderdesk/internal/service/catalog"
	customersvc "orderdesk/internal/service/customer"
	ordersvc "orderdesk/internal/service/order"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("orderdesk-api", cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	basketRepo := basketrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)

	catalogService := catalogsvc.New(productRepo)
	resolver := pricing.NewResolver(catalogService, nil, logger)
	customerService := customersvc.New(customerRepo, tokenRepo, cfg.CustomerTokenTTL, logger)
	basketService := basketsvc.New(basketRepo, catalogService, logger)
	cartService, err := cartauth.New(cartauth.Config{
		Secret:      []byte(cfg.CartToken.Secret),
		TTL:         cfg.CartToken.TTL,
		RenewWithin: cfg.CartToken.RenewWithin,
		HashCost:    cfg.CartToken.HashCost,
	}, basketService, logger)
	if err != nil {
		logger.Fatal("init cart tokens", zap.Error(err))
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic, logger)
		if err != nil {
			logger.Fatal("connect to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.Error(err))
		}
		defer kafka.Close()
		notifier = kafka
	}
	async := notify.NewAsync(notifier, 10*time.Second, logger)

	orderService := ordersvc.New(ordersvc.Deps{
		Orders:      orderRepo,
		Statuses:    statusrepo.NewPostgres(dbpool),
		Blackouts:   blackoutrepo.NewPostgres(dbpool),
		Baskets:     basketService,
		Pricing:     resolver,
		Catalog:     catalogService,
		Customers:   customerService,
		Notifier:    async,
		Predictor:   eta.NewPredictor(cfg.ETA),
		MinLeadTime: cfg.MinLeadTime,
		Logger:      logger,
	})

	var idem idempotency.Store = idempotency.NopStore{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		store := idempotency.NewRedisStore(client, "orderdesk:idempotency")
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("redis not reachable, idempotency keys will fail open", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		idem = store
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Customers:      customerService,
		Catalog:        catalogService,
		Baskets:        basketService,
		Cart:           cartService,
		Pricing:        resolver,
		Orders:         orderService,
		Idempotency:    idem,
		IdempotencyTTL: cfg.IdempotencyTTL,
		StaffAPIKey:    cfg.StaffAPIKey,
		CORSOrigins:    cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepTokens(sweepCtx, tokenRepo, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := async.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", zap.Error(err))
	}
	logger.Info("server stopped")
}

// sweepTokens deletes expired customer access tokens once an hour.
func sweepTokens(ctx context.Context, tokens tokenrepo.Repository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("sweep expired tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tokens removed", zap.Int64("count", n))
			}
		}
	}
}
