package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
)

// Queue defines the interface for the durable sync queue.
// Items are never deleted while active; terminal items older than the
// retention threshold are purged by CleanupTerminal.
type Queue interface {
	// Enqueue persists a batch of newly submitted items with status pending
	Enqueue(ctx context.Context, items []*domain.SyncQueueItem) error

	// GetByID fetches a single queue item
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncQueueItem, error)

	// MarkSynced transitions an item to synced and stamps synced_at.
	// The transition is guarded in SQL: only pending/syncing rows are updated.
	MarkSynced(ctx context.Context, id uuid.UUID, syncedAt time.Time) error

	// MarkConflict transitions an item to conflict and links the conflict row
	MarkConflict(ctx context.Context, id uuid.UUID, conflictID uuid.UUID) error

	// MarkFailed transitions an item to failed with a terminal error message
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// ResolveItem finalizes a conflict item after its conflict is resolved.
	// outcome must be synced or failed; the update is guarded on status=conflict.
	ResolveItem(ctx context.Context, id uuid.UUID, outcome domain.QueueStatus, errorMessage *string, at time.Time) error

	// RequeueForRetry returns an item to pending after a transient failure,
	// recording the attempt count and the earliest time the next attempt may run
	RequeueForRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, errorMessage string) error

	// GetDueForRetry returns pending items whose backoff window has passed
	GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*domain.SyncQueueItem, error)

	// CountByStatus returns per-status counts for a caller's items
	CountByStatus(ctx context.Context, userID string, deviceID *string) (map[domain.QueueStatus]int, error)

	// CleanupTerminal purges terminal items older than the cutoff and returns
	// the number of rows removed
	CleanupTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}
