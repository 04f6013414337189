package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/events"
	"github.com/cityworks/addressing-service/internal/observability"
	"github.com/cityworks/addressing-service/internal/persistence"
	"github.com/cityworks/addressing-service/internal/repository"
	"github.com/cityworks/addressing-service/internal/worker"
	"github.com/cityworks/addressing-service/internal/workflow"
)

// priorityd runs the due-date priority recalculation as a standalone
// process, for deployments that keep background jobs off the API nodes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := persistence.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := persistence.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	dispatcher := events.NewInMemoryDispatcher()
	ticketRepo := repository.NewTicketRepository(pool)
	updater := workflow.NewPriorityUpdater(ticketRepo, dispatcher, logger, nil)

	logger.Info("priority worker starting",
		zap.Duration("interval", cfg.Worker.PriorityInterval()))
	worker.NewPriorityWorker(updater, redisClient, logger, cfg.Worker).Start(ctx)
}
