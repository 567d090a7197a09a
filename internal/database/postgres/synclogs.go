package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

type syncLogsRepository struct {
	db *pgxpool.Pool
}

// NewSyncLogsRepository creates a new PostgreSQL sync session log repository
func NewSyncLogsRepository(db *pgxpool.Pool) repository.SyncLogs {
	return &syncLogsRepository{db: db}
}

// Start inserts the session record with status in_progress
func (r *syncLogsRepository) Start(ctx context.Context, log *domain.SyncLog) error {
	var metadataJSON []byte
	if log.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO sync_log (id, user_id, device_id, sync_type, status, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, log.ID, log.UserID, log.DeviceID, log.SyncType, domain.SessionInProgress, metadataJSON, log.StartedAt)
	return classifyStoreError(err)
}

// Finish writes the terminal counters and completion time for a session
func (r *syncLogsRepository) Finish(ctx context.Context, id uuid.UUID, completedAt time.Time, outcome repository.SessionOutcome) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sync_log
		SET status = $2, entities_synced = $3, entities_failed = $4, conflicts = $5,
		    duration_ms = $6, error_message = $7, completed_at = $8
		WHERE id = $1
	`, id, outcome.Status, outcome.EntitiesSynced, outcome.EntitiesFailed,
		outcome.Conflicts, outcome.DurationMs, outcome.ErrorMessage, completedAt)
	return classifyStoreError(err)
}

// History returns a caller's sessions, newest first
func (r *syncLogsRepository) History(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, device_id, sync_type, entities_synced, entities_failed,
		       conflicts, duration_ms, status, error_message, metadata, started_at, completed_at
		FROM sync_log
		WHERE user_id = $1 AND ($3::text IS NULL OR device_id = $3)
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, limit, deviceID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var logs []domain.SyncLog
	for rows.Next() {
		var l domain.SyncLog
		var metadataJSON []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.DeviceID, &l.SyncType,
			&l.EntitiesSynced, &l.EntitiesFailed, &l.Conflicts, &l.DurationMs,
			&l.Status, &l.ErrorMessage, &metadataJSON, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, classifyStoreError(err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, classifyStoreError(rows.Err())
}

// LastCompleted returns when the caller's most recent session finished
func (r *syncLogsRepository) LastCompleted(ctx context.Context, userID string, deviceID *string) (*time.Time, error) {
	var completedAt time.Time
	err := r.db.QueryRow(ctx, `
		SELECT completed_at
		FROM sync_log
		WHERE user_id = $1 AND completed_at IS NOT NULL AND ($2::text IS NULL OR device_id = $2)
		ORDER BY completed_at DESC
		LIMIT 1
	`, userID, deviceID).Scan(&completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyStoreError(err)
	}
	return &completedAt, nil
}

// Cleanup purges finished sessions older than the cutoff
func (r *syncLogsRepository) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM sync_log
		WHERE completed_at IS NOT NULL AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return tag.RowsAffected(), nil
}
