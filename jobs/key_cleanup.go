package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tailorhub/tailorhub/internal/jobs"
)

const (
	// TaskKeyCleanup purges expired idempotency keys.
	TaskKeyCleanup = "idempotency:cleanup"

	jobKeyCleanup = "idempotency_cleanup"

	// DefaultKeyRetention bounds how long a client may replay a request.
	DefaultKeyRetention = 7 * 24 * time.Hour
)

// KeyCleaner deletes old idempotency keys. *shared.IdempotencyStore
// satisfies it.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewKeyCleanupTask constructs the cleanup task registered with the scheduler.
func NewKeyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskKeyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// KeyCleanupJob purges idempotency keys past their retention.
type KeyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Metrics   *jobmetrics.Metrics
	Logger    *slog.Logger
}

// NewKeyCleanupJob initialises the cleanup handler.
func NewKeyCleanupJob(store KeyCleaner, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *KeyCleanupJob {
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyCleanupJob{Store: store, Retention: retention, Metrics: metrics, Logger: logger.With(slog.String("job", jobKeyCleanup))}
}

// Handle executes the cleanup.
func (j *KeyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("key cleanup: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(jobKeyCleanup)
	n, err := j.Store.Cleanup(ctx, j.Retention)
	if err != nil {
		j.Logger.Error("cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("purged idempotency keys", slog.Int64("deleted", n), slog.Duration("retention", j.Retention))
	return tracker.End(nil)
}
