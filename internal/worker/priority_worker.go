package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/workflow"
)

const priorityLockKey = "worker:priority-update:lock"

// PriorityWorker runs the batch priority recalculation on a fixed cadence.
// A Redis lease keeps concurrent instances from running the batch twice.
type PriorityWorker struct {
	updater *workflow.PriorityUpdater
	redis   *redis.Client
	logger  *zap.Logger
	cfg     config.WorkerConfig
}

// NewPriorityWorker constructs the worker.
func NewPriorityWorker(updater *workflow.PriorityUpdater, redisClient *redis.Client, logger *zap.Logger, cfg config.WorkerConfig) *PriorityWorker {
	return &PriorityWorker{updater: updater, redis: redisClient, logger: logger, cfg: cfg}
}

// Start runs one pass immediately, then loops on the configured interval
// until the context is canceled.
func (w *PriorityWorker) Start(ctx context.Context) {
	w.runOnce(ctx)

	ticker := time.NewTicker(w.cfg.PriorityInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("priority worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PriorityWorker) runOnce(ctx context.Context) {
	acquired, err := w.acquireLease(ctx)
	if err != nil {
		w.logger.Warn("priority lease check failed", zap.Error(err))
		return
	}
	if !acquired {
		w.logger.Debug("priority update held by another instance")
		return
	}
	defer w.releaseLease(ctx)

	changed, err := w.updater.Run(ctx)
	if err != nil {
		w.logger.Error("priority update run failed", zap.Error(err))
		return
	}
	w.logger.Info("priority update run complete", zap.Int("changed", changed))
}

func (w *PriorityWorker) acquireLease(ctx context.Context) (bool, error) {
	if w.redis == nil {
		return true, nil
	}
	return w.redis.SetNX(ctx, priorityLockKey, "1", w.cfg.PriorityLockTTL()).Result()
}

func (w *PriorityWorker) releaseLease(ctx context.Context) {
	if w.redis == nil {
		return
	}
	if err := w.redis.Del(ctx, priorityLockKey).Err(); err != nil {
		w.logger.Warn("priority lease release failed", zap.Error(err))
	}
}
