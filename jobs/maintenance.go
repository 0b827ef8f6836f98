package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/auth"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// IdempotencyCleanupJob prunes aged idempotency keys so retried admin
// requests with fresh keys do not accumulate forever.
type IdempotencyCleanupJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("idempotency_cleanup")
	return tracker.End(j.cleanup(ctx, t))
}

func (j *IdempotencyCleanupJob) cleanup(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	if err := j.store.Cleanup(ctx, retention); err != nil {
		return err
	}
	j.logger.Info("idempotency cleanup", slog.Duration("retention", retention))
	return nil
}

// TokenPurgeJob drops expired API tokens.
type TokenPurgeJob struct {
	service *auth.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewTokenPurgeJob constructs the job.
func NewTokenPurgeJob(service *auth.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *TokenPurgeJob {
	return &TokenPurgeJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskTokenPurge tasks.
func (j *TokenPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("token_purge")
	purged, err := j.service.PurgeExpired(ctx)
	if err != nil {
		return tracker.End(err)
	}
	j.logger.Info("token purge", slog.Int64("purged", purged))
	return tracker.End(nil)
}
