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

type conflictsRepository struct {
	db *pgxpool.Pool
}

// NewConflictsRepository creates a new PostgreSQL conflict store repository
func NewConflictsRepository(db *pgxpool.Pool) repository.Conflicts {
	return &conflictsRepository{db: db}
}

const conflictColumns = `
	id, entity_type, entity_id, local_version, server_version, local_data,
	server_data, user_id, device_id, queue_item_id, resolved, resolution,
	resolved_by, resolved_at, created_at`

// Record stores a newly detected conflict
func (r *conflictsRepository) Record(ctx context.Context, c *domain.SyncConflict) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sync_conflicts (id, entity_type, entity_id, local_version, server_version,
			local_data, server_data, user_id, device_id, queue_item_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.EntityType, c.EntityID, c.LocalVersion, c.ServerVersion,
		c.LocalData, c.ServerData, c.UserID, c.DeviceID, c.QueueItemID, c.CreatedAt)
	return classifyStoreError(err)
}

// GetByID fetches a single conflict
func (r *conflictsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE id = $1`

	c, err := scanConflict(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConflictNotFound
		}
		return nil, classifyStoreError(err)
	}
	return c, nil
}

// GetOpenByUser returns unresolved conflicts for a caller, newest first
func (r *conflictsRepository) GetOpenByUser(ctx context.Context, userID string) ([]domain.SyncConflict, error) {
	query := `
		SELECT ` + conflictColumns + `
		FROM sync_conflicts
		WHERE user_id = $1 AND resolved = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var conflicts []domain.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, classifyStoreError(err)
		}
		conflicts = append(conflicts, *c)
	}
	return conflicts, classifyStoreError(rows.Err())
}

// CountOpen returns the number of unresolved conflicts for a caller
func (r *conflictsRepository) CountOpen(ctx context.Context, userID string, deviceID *string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM sync_conflicts
		WHERE user_id = $1 AND resolved = FALSE AND ($2::text IS NULL OR device_id = $2)
	`, userID, deviceID).Scan(&n)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return n, nil
}

// MarkResolved finalizes a conflict. Resolved conflicts are immutable: the
// update is guarded on resolved = FALSE.
func (r *conflictsRepository) MarkResolved(ctx context.Context, id uuid.UUID, resolution domain.Resolution, resolvedBy string, resolvedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sync_conflicts
		SET resolved = TRUE, resolution = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND resolved = FALSE
	`, id, resolution, resolvedBy, resolvedAt)
	if err != nil {
		return classifyStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s", domain.ErrConflictResolved, id)
	}
	return nil
}

// Reopen releases a resolution claim. Only used on the compensation path
// after the entity write for a claimed resolution failed.
func (r *conflictsRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sync_conflicts
		SET resolved = FALSE, resolution = NULL, resolved_by = NULL, resolved_at = NULL
		WHERE id = $1 AND resolved = TRUE
	`, id)
	if err != nil {
		return classifyStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		// Missing row is an error; an already-open row is not
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func scanConflict(row pgx.Row) (*domain.SyncConflict, error) {
	var c domain.SyncConflict
	err := row.Scan(
		&c.ID, &c.EntityType, &c.EntityID, &c.LocalVersion, &c.ServerVersion,
		&c.LocalData, &c.ServerData, &c.UserID, &c.DeviceID, &c.QueueItemID,
		&c.Resolved, &c.Resolution, &c.ResolvedBy, &c.ResolvedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
