package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	apihttp "github.com/cityworks/addressing-service/internal/api/http"
	"github.com/cityworks/addressing-service/internal/api/http/handlers"
	"github.com/cityworks/addressing-service/internal/auth"
	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/events"
	"github.com/cityworks/addressing-service/internal/letters"
	"github.com/cityworks/addressing-service/internal/observability"
	"github.com/cityworks/addressing-service/internal/persistence"
	"github.com/cityworks/addressing-service/internal/repository"
	"github.com/cityworks/addressing-service/internal/service"
	"github.com/cityworks/addressing-service/internal/worker"
	"github.com/cityworks/addressing-service/internal/workflow"
)

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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redisClient, err := persistence.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	ticketRepo := repository.NewTicketRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	engine := workflow.NewEngine(workflow.Dependencies{
		TicketStore: ticketRepo,
		Staff:       staffRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	updater := workflow.NewPriorityUpdater(ticketRepo, dispatcher, logger, nil)

	letterGen, err := letters.NewGenerator(cfg.Signature.LettersDir)
	if err != nil {
		logger.Fatal("letter generator init failed", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	authSvc := service.NewAuthService(staffRepo, tokens, hasher, logger)
	signatureSvc := service.NewSignatureService(ticketRepo, redisClient, letterGen, dispatcher, logger, cfg.Signature)
	notificationSvc := service.NewNotificationService(logger, cfg.Notification)
	notificationSvc.RegisterHandlers(dispatcher)

	priorityWorker := worker.NewPriorityWorker(updater, redisClient, logger, cfg.Worker)
	go priorityWorker.Start(ctx)

	app := apihttp.NewApp(apihttp.RouterDependencies{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Tokens:     tokens,
		Health:     handlers.NewHealthHandler(pool, redisClient, metrics, cfg.App.Version),
		Tickets:    handlers.NewTicketsHandler(engine, ticketRepo, signatureSvc, updater),
		Staff:      handlers.NewStaffHandler(staffRepo, authSvc),
		Signatures: handlers.NewSignatureHandler(signatureSvc),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down http server")
		_ = app.Shutdown()
	}()

	logger.Info("http server starting", zap.String("addr", cfg.App.Addr()))
	if err := app.Listen(cfg.App.Addr()); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}
