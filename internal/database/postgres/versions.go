package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

type versionsRepository struct {
	db *pgxpool.Pool
}

// NewVersionsRepository creates a new PostgreSQL version store repository
func NewVersionsRepository(db *pgxpool.Pool) repository.Versions {
	return &versionsRepository{db: db}
}

// Get returns the version row for an entity
func (r *versionsRepository) Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error) {
	query := `
		SELECT entity_type, entity_id, version, data, data_hash, deleted, updated_by, updated_at
		FROM entity_versions
		WHERE entity_type = $1 AND entity_id = $2
	`

	var row domain.EntityVersion
	err := r.db.QueryRow(ctx, query, entityType, entityID).Scan(
		&row.EntityType, &row.EntityID, &row.Version, &row.Data,
		&row.DataHash, &row.Deleted, &row.UpdatedBy, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, classifyStoreError(err)
	}

	return &row, nil
}

// InsertFirst creates the version row at version 1 together with the first
// change log entry. Losing a concurrent create race returns applied=false.
func (r *versionsRepository) InsertFirst(ctx context.Context, ch repository.Change) (*domain.EntityVersion, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, classifyStoreError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()

	tag, err := tx.Exec(ctx, `
		INSERT INTO entity_versions (entity_type, entity_id, version, data, data_hash, deleted, updated_by, updated_at)
		VALUES ($1, $2, 1, $3, $4, FALSE, $5, $6)
		ON CONFLICT (entity_type, entity_id) DO NOTHING
	`, ch.EntityType, ch.EntityID, ch.Data, ch.DataHash, ch.UpdatedBy, now)
	if err != nil {
		return nil, false, classifyStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		// Another device created the entity first
		return nil, false, nil
	}

	if err := appendChangeLog(ctx, tx, ch, 1, false, now); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, classifyStoreError(err)
	}

	return &domain.EntityVersion{
		EntityType: ch.EntityType,
		EntityID:   ch.EntityID,
		Version:    1,
		Data:       ch.Data,
		DataHash:   ch.DataHash,
		UpdatedBy:  ch.UpdatedBy,
		UpdatedAt:  now,
	}, true, nil
}

// ApplyCAS bumps the version with a conditional update and appends the change
// log entry in the same transaction. Two racing writers with the same
// expected version: exactly one sees applied=true.
func (r *versionsRepository) ApplyCAS(ctx context.Context, ch repository.Change, expectedVersion int64) (*domain.EntityVersion, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, classifyStoreError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	deleted := ch.Operation == domain.OpDelete

	var newVersion int64
	err = tx.QueryRow(ctx, `
		UPDATE entity_versions
		SET version = version + 1,
		    data = $1,
		    data_hash = $2,
		    deleted = $3,
		    updated_by = $4,
		    updated_at = $5
		WHERE entity_type = $6 AND entity_id = $7 AND version = $8
		RETURNING version
	`, ch.Data, ch.DataHash, deleted, ch.UpdatedBy, now, ch.EntityType, ch.EntityID, expectedVersion).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Version moved underneath the caller
			return nil, false, nil
		}
		return nil, false, classifyStoreError(err)
	}

	if err := appendChangeLog(ctx, tx, ch, newVersion, deleted, now); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, classifyStoreError(err)
	}

	return &domain.EntityVersion{
		EntityType: ch.EntityType,
		EntityID:   ch.EntityID,
		Version:    newVersion,
		Data:       ch.Data,
		DataHash:   ch.DataHash,
		Deleted:    deleted,
		UpdatedBy:  ch.UpdatedBy,
		UpdatedAt:  now,
	}, true, nil
}

// appendChangeLog writes the change feed row that assigns this write its
// global sequence. Must run inside the same transaction as the version bump.
func appendChangeLog(ctx context.Context, tx pgx.Tx, ch repository.Change, version int64, deleted bool, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO entity_change_log (entity_type, entity_id, operation, data, version, deleted, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ch.EntityType, ch.EntityID, ch.Operation, ch.Data, version, deleted, ch.UpdatedBy, at)
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}
