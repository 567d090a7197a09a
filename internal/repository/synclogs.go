package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
)

// SessionOutcome carries the final counters written when a session ends
type SessionOutcome struct {
	Status         string
	EntitiesSynced int
	EntitiesFailed int
	Conflicts      int
	DurationMs     int64
	ErrorMessage   *string
}

// SyncLogs defines the interface for the append-only sync session audit
type SyncLogs interface {
	// Start inserts the session record with status in_progress
	Start(ctx context.Context, log *domain.SyncLog) error

	// Finish writes the terminal counters and completion time for a session
	Finish(ctx context.Context, id uuid.UUID, completedAt time.Time, outcome SessionOutcome) error

	// History returns a caller's sessions, newest first
	History(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error)

	// LastCompleted returns when the caller's most recent session finished
	LastCompleted(ctx context.Context, userID string, deviceID *string) (*time.Time, error)

	// Cleanup purges finished sessions older than the cutoff
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
}
