package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/armada-dist/armada/internal/observability"
	"github.com/armada-dist/armada/internal/shared"
)

// IdempotencyCleanupJob prunes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	Store   *shared.IdempotencyStore
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *observability.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.Metrics.ObserveJob(TaskIdempotencyCleanup, "error")
		if j.Logger != nil {
			j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		}
		return err
	}
	j.Metrics.ObserveJob(TaskIdempotencyCleanup, "ok")
	if j.Logger != nil {
		j.Logger.Info("idempotency cleanup done", slog.Duration("retention", retention))
	}
	return nil
}
