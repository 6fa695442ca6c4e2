// Package main is the entry point for the skugen background worker.
// It relays outbox events to RabbitMQ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"skugen/internal/config"
	appctx "skugen/internal/core/context"
	"skugen/internal/infrastructure/messaging/rabbitmq"
	"skugen/internal/infrastructure/storage/postgres"
	"skugen/pkg/logger"
)

const (
	cleanupInterval    = time.Hour
	publishedRetention = 7 * 24 * time.Hour
)

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
	if cfg.DatabaseURL == "" || cfg.RabbitMQURL == "" {
		log.Fatal("DATABASE_URL and RABBITMQ_URL are required")
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting skugen worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	conn, ch, err := rabbitmq.SetupConn(ctx, cfg.RabbitMQURL, cfg.OutboxExchange)
	if err != nil {
		log.Fatalw("failed to connect to RabbitMQ", "error", err)
	}
	defer conn.Close()

	relay := postgres.NewOutboxRelay(
		postgres.NewTxManager(pool),
		cfg.OutboxBatchSize,
		rabbitmq.NewPublisher(ch, cfg.OutboxExchange, "skugen"),
	)
	worker := NewWorker(relay, log, cfg.OutboxPollInterval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-conn.NotifyClose(make(chan *amqp.Error, 1)):
		log.Error("RabbitMQ connection closed")
	}

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Relay is the outbox relay driven by the worker.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// Worker polls the outbox and runs hourly housekeeping.
type Worker struct {
	relay        Relay
	log          *logger.Logger
	pollInterval time.Duration
}

func NewWorker(relay Relay, log *logger.Logger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		relay:        relay,
		log:          log.WithComponent("worker"),
		pollInterval: pollInterval,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// drain relays full batches back to back until the outbox is caught up.
func (w *Worker) drain(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		w.log.Debugw("relayed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if moved, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move messages to DLQ", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved undeliverable messages to DLQ", "count", moved)
	}

	if purged, err := w.relay.PurgePublished(ctx, publishedRetention); err != nil {
		w.log.Errorw("failed to purge published messages", "error", err)
	} else if purged > 0 {
		w.log.Infow("purged published outbox messages", "count", purged)
	}
}
