package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

type queueRepository struct {
	db *pgxpool.Pool
}

// NewQueueRepository creates a new PostgreSQL sync queue repository
func NewQueueRepository(db *pgxpool.Pool) repository.Queue {
	return &queueRepository{db: db}
}

const queueColumns = `
	id, user_id, device_id, entity_type, entity_id, operation, data,
	client_version, status, retry_count, max_retries, next_retry_at,
	error_message, conflict_id, created_at, updated_at, synced_at`

// Enqueue persists a batch of newly submitted items
func (r *queueRepository) Enqueue(ctx context.Context, items []*domain.SyncQueueItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO sync_queue (id, user_id, device_id, entity_type, entity_id, operation, data,
				client_version, status, retry_count, max_retries, error_message, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, item.ID, item.UserID, item.DeviceID, item.EntityType, item.EntityID, item.Operation,
			item.Data, item.ClientVersion, item.Status, item.RetryCount, item.MaxRetries,
			item.ErrorMessage, item.CreatedAt, item.UpdatedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return classifyStoreError(err)
		}
	}
	return nil
}

// GetByID fetches a single queue item
func (r *queueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE id = $1`

	row, err := scanQueueItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueueItemNotFound
		}
		return nil, classifyStoreError(err)
	}
	return row, nil
}

// MarkSynced transitions an item to synced. Guarded in SQL so terminal rows
// are never rewound.
func (r *queueRepository) MarkSynced(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	return r.guardedUpdate(ctx, id, `
		UPDATE sync_queue
		SET status = 'synced', synced_at = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'syncing')
	`, id, syncedAt)
}

// MarkConflict transitions an item to conflict and links the conflict row
func (r *queueRepository) MarkConflict(ctx context.Context, id uuid.UUID, conflictID uuid.UUID) error {
	return r.guardedUpdate(ctx, id, `
		UPDATE sync_queue
		SET status = 'conflict', conflict_id = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'syncing')
	`, id, conflictID)
}

// MarkFailed transitions an item to failed with a terminal error message
func (r *queueRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.guardedUpdate(ctx, id, `
		UPDATE sync_queue
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'syncing')
	`, id, errorMessage)
}

// ResolveItem finalizes a conflict item once its conflict is resolved
func (r *queueRepository) ResolveItem(ctx context.Context, id uuid.UUID, outcome domain.QueueStatus, errorMessage *string, at time.Time) error {
	if outcome != domain.StatusSynced && outcome != domain.StatusFailed {
		return fmt.Errorf("%w: resolution outcome %s", domain.ErrInvalidTransition, outcome)
	}
	return r.guardedUpdate(ctx, id, `
		UPDATE sync_queue
		SET status = $2,
		    error_message = $3,
		    synced_at = CASE WHEN $2 = 'synced' THEN $4 ELSE synced_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'conflict'
	`, id, outcome, errorMessage, at)
}

// RequeueForRetry returns an item to pending after a transient failure
func (r *queueRepository) RequeueForRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, errorMessage string) error {
	return r.guardedUpdate(ctx, id, `
		UPDATE sync_queue
		SET status = 'pending', retry_count = $2, next_retry_at = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'syncing')
	`, id, retryCount, nextRetryAt, errorMessage)
}

func (r *queueRepository) guardedUpdate(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return classifyStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or it already reached a terminal state
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: item %s", domain.ErrInvalidTransition, id)
	}
	return nil
}

// GetDueForRetry returns pending items whose backoff window has passed
func (r *queueRepository) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*domain.SyncQueueItem, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM sync_queue
		WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var items []*domain.SyncQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, classifyStoreError(err)
		}
		items = append(items, item)
	}
	return items, classifyStoreError(rows.Err())
}

// CountByStatus returns per-status counts for a caller's items
func (r *queueRepository) CountByStatus(ctx context.Context, userID string, deviceID *string) (map[domain.QueueStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM sync_queue
		WHERE user_id = $1 AND ($2::text IS NULL OR device_id = $2)
		GROUP BY status
	`

	rows, err := r.db.Query(ctx, query, userID, deviceID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	counts := make(map[domain.QueueStatus]int)
	for rows.Next() {
		var status domain.QueueStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classifyStoreError(err)
		}
		counts[status] = n
	}
	return counts, classifyStoreError(rows.Err())
}

// CleanupTerminal purges terminal items older than the cutoff
func (r *queueRepository) CleanupTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM sync_queue
		WHERE status IN ('synced', 'failed', 'conflict') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return tag.RowsAffected(), nil
}

func scanQueueItem(row pgx.Row) (*domain.SyncQueueItem, error) {
	var item domain.SyncQueueItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.DeviceID, &item.EntityType, &item.EntityID,
		&item.Operation, &item.Data, &item.ClientVersion, &item.Status,
		&item.RetryCount, &item.MaxRetries, &item.NextRetryAt, &item.ErrorMessage,
		&item.ConflictID, &item.CreatedAt, &item.UpdatedAt, &item.SyncedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
