package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/maternar/sync-engine/internal/logger"
)

// RetrySweeper re-processes queue items whose retry timer has elapsed.
// Implemented by the sync engine.
type RetrySweeper interface {
	SweepDueRetries(ctx context.Context, now time.Time, limit int) (int, error)
}

// RetryJob drains due retries when run on the pool
type RetryJob struct {
	sweeper RetrySweeper
	limit   int
}

func NewRetryJob(sweeper RetrySweeper, limit int) *RetryJob {
	if limit <= 0 {
		limit = DefaultRetryBatchSize
	}
	return &RetryJob{sweeper: sweeper, limit: limit}
}

// Process sweeps one batch of due retries
func (j *RetryJob) Process(ctx context.Context) error {
	processed, err := j.sweeper.SweepDueRetries(ctx, time.Now().UTC(), j.limit)
	if err != nil {
		return err
	}
	if processed > 0 {
		logger.FromContext(ctx).Info(LogMsgRetrySweepComplete, slog.Int("processed", processed))
	}
	return nil
}
