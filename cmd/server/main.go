// Package main is the entry point for the skugen API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skugen/internal/config"
	"skugen/internal/core/sku"
	"skugen/internal/domain/allocator"
	"skugen/internal/domain/auth"
	"skugen/internal/domain/counter"
	"skugen/internal/domain/intake"
	"skugen/internal/domain/reserve"
	v1 "skugen/internal/infrastructure/http/v1"
	"skugen/internal/infrastructure/http/v1/handlers"
	"skugen/internal/infrastructure/lock"
	"skugen/internal/infrastructure/shopify"
	"skugen/internal/infrastructure/storage/postgres"
	"skugen/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting skugen server", "version", version, "sku_prefix", cfg.SKU.Prefix)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	counters := postgres.NewCounterRepo(txManager)
	ledger := postgres.NewLedgerRepo(txManager)
	sessions := postgres.NewSessionRepo(txManager)
	outbox := postgres.NewOutboxPublisher(txManager)

	// --- Shop lock ---
	locker, rdb, err := lock.NewShopLocker(cfg.RedisURL, lock.RedisConfig{TTL: cfg.LockTTL, Wait: cfg.LockWait})
	if err != nil {
		log.Fatalw("invalid REDIS_URL", "error", err)
	}
	var healthChecks []handlers.Check
	if rdb != nil {
		defer rdb.Close()
		healthChecks = append(healthChecks, handlers.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Infow("using redis shop lock", "ttl", cfg.LockTTL, "wait", cfg.LockWait)
	} else {
		log.Warn("REDIS_URL not set, shop lock is process-local; run a single instance")
	}

	// --- Domain ---
	codec, err := sku.NewCodec(cfg.SKU.Prefix)
	if err != nil {
		log.Fatalw("invalid SKU_PREFIX", "error", err)
	}

	connector := shopify.NewConnector(sessions, shopify.Config{
		APIVersion:     cfg.Shopify.APIVersion,
		Timeout:        cfg.Shopify.CallTimeout,
		WriteMetafield: cfg.Shopify.WriteMetafield,
	})

	allocatorService := allocator.NewService(counters, ledger, locker, connector, txManager, codec, allocator.Options{
		AutoProvisionStart: cfg.SKU.AutoProvisionStart,
		ProbeTimeout:       cfg.Shopify.CallTimeout,
	})
	intakeService := intake.NewService(ledger, allocatorService, connector, outbox, txManager, codec, intake.Config{
		WriteConcurrency: cfg.CatalogWriteConcurrency,
		WriteTimeout:     cfg.Shopify.CallTimeout,
	})
	counterService := counter.NewService(counters, locker, outbox, txManager, codec)
	reserveService := reserve.NewService(allocatorService, outbox, codec, cfg.SKU.ReserveMax)
	sessionService := auth.NewService(sessions)
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Shopify.APIKey, cfg.Shopify.APISecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		HealthChecks:  healthChecks,
		Version:       version,
		Logger:        log,
		WebhookSecret: cfg.Shopify.APISecret,
		JWTValidator:  jwtService,
		Intake:        intakeService,
		Products:      intakeService,
		Sessions:      sessionService,
		Counters:      counterService,
		Reserver:      reserveService,
		ScriptTag:     connector,
		ScriptSrc:     cfg.Shopify.ScriptSrc,
		Codec:         codec,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give in-flight webhooks time to finish their catalog writes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	postgres.LogPoolStats(ctx, pool.Unwrap())
	log.Info("server stopped")
}
