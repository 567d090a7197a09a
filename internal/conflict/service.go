package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/concurrency"
	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/event"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/repository"
	"github.com/maternar/sync-engine/internal/validation"
	"github.com/maternar/sync-engine/internal/version"
)

// ResolveResult reports the canonical version after a resolution
type ResolveResult struct {
	NewVersion int64 `json:"new_version"`
}

// Service settles recorded conflicts. A resolution is final: the conflict row
// is claimed with a guarded update before any entity write, so the same
// conflict can never be applied twice.
type Service interface {
	// Resolve settles one conflict. merge and manual require mergedData,
	// validated against the entity's schema before anything is written.
	Resolve(ctx context.Context, conflictID uuid.UUID, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage) (*ResolveResult, error)

	// GetOpen returns a caller's unresolved conflicts, newest first
	GetOpen(ctx context.Context, userID string) ([]domain.SyncConflict, error)
}

type service struct {
	conflicts repository.Conflicts
	queue     repository.Queue
	versions  version.Service
	payloads  validation.PayloadValidator
	locks     *concurrency.LockManager
	bus       event.Bus
}

// NewService creates a new conflict resolver
func NewService(
	conflicts repository.Conflicts,
	queue repository.Queue,
	versions version.Service,
	payloads validation.PayloadValidator,
	locks *concurrency.LockManager,
	bus event.Bus,
) Service {
	return &service{
		conflicts: conflicts,
		queue:     queue,
		versions:  versions,
		payloads:  payloads,
		locks:     locks,
		bus:       bus,
	}
}

func (s *service) GetOpen(ctx context.Context, userID string) ([]domain.SyncConflict, error) {
	return s.conflicts.GetOpenByUser(ctx, userID)
}

func (s *service) Resolve(ctx context.Context, conflictID uuid.UUID, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage) (*ResolveResult, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: resolution %q", domain.ErrValidation, resolution)
	}

	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict.Resolved {
		return nil, fmt.Errorf("%w: %s", domain.ErrConflictResolved, conflictID)
	}

	if resolution.RequiresMergedData() {
		if len(mergedData) == 0 {
			return nil, fmt.Errorf("%w: resolution %s", domain.ErrMergedDataNeeded, resolution)
		}
		if err := s.payloads.Validate(conflict.EntityType, mergedData); err != nil {
			return nil, err
		}
	}

	var result *ResolveResult
	s.locks.WithEntityLock(conflict.EntityType, conflict.EntityID, func() {
		result, err = s.apply(ctx, conflict, resolution, resolvedBy, mergedData)
	})
	if err != nil {
		return nil, err
	}

	s.publishResolved(ctx, conflict, resolution, resolvedBy, result.NewVersion)
	return result, nil
}

// apply runs under the entity lock. The MarkResolved guard claims the
// conflict first; a concurrent resolver on another instance loses there and
// sees ErrConflictResolved before any entity write happens. If the entity
// write or the queue finalization then fails, the claim is released again so
// a retry can apply the resolution: a claimed conflict with no version bump
// must never outlive this call.
func (s *service) apply(ctx context.Context, conflict *domain.SyncConflict, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage) (*ResolveResult, error) {
	now := time.Now().UTC()
	if err := s.conflicts.MarkResolved(ctx, conflict.ID, resolution, resolvedBy, now); err != nil {
		return nil, err
	}

	result, err := s.finalize(ctx, conflict, resolution, resolvedBy, mergedData, now)
	if err != nil {
		if reopenErr := s.conflicts.Reopen(ctx, conflict.ID); reopenErr != nil {
			logger.FromContext(ctx).Error("Failed to release resolution claim",
				"conflict_id", conflict.ID, "error", reopenErr)
		}
		return nil, err
	}
	return result, nil
}

// finalize writes the resolved state to the version store and closes out the
// queue item
func (s *service) finalize(ctx context.Context, conflict *domain.SyncConflict, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage, now time.Time) (*ResolveResult, error) {
	if resolution == domain.ResolutionServerWins {
		// The canonical state stands; the losing item is closed out
		msg := domain.ErrMsgItemSuperseded
		if err := s.queue.ResolveItem(ctx, conflict.QueueItemID, domain.StatusFailed, &msg, now); err != nil {
			return nil, err
		}
		return &ResolveResult{NewVersion: conflict.ServerVersion}, nil
	}

	payload := conflict.LocalData
	if resolution.RequiresMergedData() {
		payload = mergedData
	}

	applied, err := s.versions.ApplyResolution(ctx, version.ApplyRequest{
		EntityType: conflict.EntityType,
		EntityID:   conflict.EntityID,
		Data:       payload,
		UpdatedBy:  resolvedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.ResolveItem(ctx, conflict.QueueItemID, domain.StatusSynced, nil, now); err != nil {
		return nil, err
	}
	return &ResolveResult{NewVersion: applied.NewVersion}, nil
}

func (s *service) publishResolved(ctx context.Context, conflict *domain.SyncConflict, resolution domain.Resolution, resolvedBy string, newVersion int64) {
	evt := event.NewConflictResolvedEvent(event.ConflictResolvedPayloadV1{
		ConflictID: conflict.ID.String(),
		Resolution: resolution,
		NewVersion: newVersion,
		ResolvedBy: resolvedBy,
	})
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Error("Failed to publish conflict resolved event", "error", err)
	}
}
