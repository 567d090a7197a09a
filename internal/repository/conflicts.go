package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
)

// Conflicts defines the interface for detected version mismatches.
// Conflict rows are append-mostly: they are recorded once, marked resolved
// once, and never deleted.
type Conflicts interface {
	// Record stores a newly detected conflict
	Record(ctx context.Context, conflict *domain.SyncConflict) error

	// GetByID fetches a single conflict, or domain.ErrConflictNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncConflict, error)

	// GetOpenByUser returns unresolved conflicts for a caller, newest first
	GetOpenByUser(ctx context.Context, userID string) ([]domain.SyncConflict, error)

	// CountOpen returns the number of unresolved conflicts for a caller
	CountOpen(ctx context.Context, userID string, deviceID *string) (int, error)

	// MarkResolved finalizes a conflict. The update is guarded on
	// resolved=false; a second attempt returns domain.ErrConflictResolved.
	MarkResolved(ctx context.Context, id uuid.UUID, resolution domain.Resolution, resolvedBy string, resolvedAt time.Time) error

	// Reopen releases a resolution claim whose entity write failed, so a
	// retry can resolve the conflict again. Idempotent: reopening an
	// already-open conflict is a no-op.
	Reopen(ctx context.Context, id uuid.UUID) error
}
