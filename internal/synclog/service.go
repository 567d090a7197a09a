package synclog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/repository"
)

// DefaultHistoryLimit caps history reads when the caller passes no limit
const DefaultHistoryLimit = 20

// Session is a handle to an in-progress sync session record
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
}

// Outcome carries the counters written when a session finishes
type Outcome struct {
	EntitiesSynced int
	EntitiesFailed int
	Conflicts      int
	ErrorMessage   *string
}

// Service records sync sessions. Records are append-only: started once,
// finalized once, then immutable until cleanup.
type Service interface {
	// StartSession inserts the session record with status in_progress
	StartSession(ctx context.Context, userID string, deviceID *string, syncType domain.SyncType) (*Session, error)

	// FinishSession finalizes a session. The status is derived from the
	// counters: completed, completed_with_errors, or failed.
	FinishSession(ctx context.Context, session *Session, outcome Outcome) error

	// History returns a caller's sessions, newest first
	History(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error)

	// LastCompleted returns when the caller's most recent session finished
	LastCompleted(ctx context.Context, userID string, deviceID *string) (*time.Time, error)

	// Cleanup purges finished sessions older than the cutoff
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo repository.SyncLogs
}

// NewService creates a new sync session logger
func NewService(repo repository.SyncLogs) Service {
	return &service{repo: repo}
}

func (s *service) StartSession(ctx context.Context, userID string, deviceID *string, syncType domain.SyncType) (*Session, error) {
	now := time.Now().UTC()
	record := &domain.SyncLog{
		ID:        uuid.New(),
		UserID:    userID,
		DeviceID:  deviceID,
		SyncType:  syncType,
		Status:    domain.SessionInProgress,
		StartedAt: now,
	}
	if err := s.repo.Start(ctx, record); err != nil {
		return nil, err
	}
	return &Session{ID: record.ID, StartedAt: now}, nil
}

func (s *service) FinishSession(ctx context.Context, session *Session, outcome Outcome) error {
	completedAt := time.Now().UTC()
	status := sessionStatus(outcome)

	err := s.repo.Finish(ctx, session.ID, completedAt, repository.SessionOutcome{
		Status:         status,
		EntitiesSynced: outcome.EntitiesSynced,
		EntitiesFailed: outcome.EntitiesFailed,
		Conflicts:      outcome.Conflicts,
		DurationMs:     completedAt.Sub(session.StartedAt).Milliseconds(),
		ErrorMessage:   outcome.ErrorMessage,
	})
	if err != nil {
		// The session itself succeeded or failed on its own terms; a lost
		// audit record must not fail the sync response
		logger.FromContext(ctx).Error("Failed to finalize sync session record",
			"session_id", session.ID, "error", err)
		return err
	}
	return nil
}

func (s *service) History(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.History(ctx, userID, limit, deviceID)
}

func (s *service) LastCompleted(ctx context.Context, userID string, deviceID *string) (*time.Time, error) {
	return s.repo.LastCompleted(ctx, userID, deviceID)
}

func (s *service) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, cutoff)
}

func sessionStatus(outcome Outcome) string {
	switch {
	case outcome.ErrorMessage != nil && outcome.EntitiesSynced == 0 && outcome.Conflicts == 0:
		return domain.SessionFailed
	case outcome.EntitiesFailed > 0 || outcome.Conflicts > 0 || outcome.ErrorMessage != nil:
		return domain.SessionPartial
	default:
		return domain.SessionCompleted
	}
}
