package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/concurrency"
	"github.com/maternar/sync-engine/internal/conflict"
	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/event"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/metrics"
	"github.com/maternar/sync-engine/internal/repository"
	"github.com/maternar/sync-engine/internal/synclog"
	"github.com/maternar/sync-engine/internal/validation"
	"github.com/maternar/sync-engine/internal/version"
	"github.com/maternar/sync-engine/internal/watermark"
	"github.com/maternar/sync-engine/internal/worker"
)

// CleanupResult reports what a maintenance pass removed
type CleanupResult struct {
	QueueItemsPurged int64 `json:"queue_items_purged"`
	SessionsPurged   int64 `json:"sessions_purged"`
	TombstonesPurged int64 `json:"tombstones_purged"`
}

// Service is the synchronization engine: the only write path into the
// canonical entity state. Request handlers run concurrently; the sole
// serialization point is per (entityType, entityId) inside the version store
// and the keyed locks.
type Service interface {
	// Push accepts a batch of queued mutations from one device. The batch is
	// partially successful by design: one item's conflict or failure never
	// blocks independent items.
	Push(ctx context.Context, userID string, deviceID *string, items []domain.PushItem) (*domain.SyncBatchResult, error)

	// Pull returns every change past the device's watermark. Read-only and
	// replay-safe: the same watermark yields the same results until
	// tombstones are garbage-collected.
	Pull(ctx context.Context, userID string, deviceID *string, watermarkToken string, entityTypes []domain.EntityType) (*domain.SyncPullResult, error)

	// Full pushes then pulls in one call. The pull baseline is the watermark
	// the device sent, so its own just-applied writes appear in the response.
	Full(ctx context.Context, userID string, deviceID *string, items []domain.PushItem, watermarkToken string, entityTypes []domain.EntityType) (*domain.FullSyncResult, error)

	// GetStatus summarizes a caller's outstanding sync work
	GetStatus(ctx context.Context, userID string, deviceID *string) (*domain.SyncStatus, error)

	// GetConflicts returns a caller's unresolved conflicts
	GetConflicts(ctx context.Context, userID string) ([]domain.SyncConflict, error)

	// ResolveConflict settles a recorded conflict through the resolver
	ResolveConflict(ctx context.Context, conflictID uuid.UUID, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage) (*conflict.ResolveResult, error)

	// GetHistory returns a caller's sync sessions, newest first
	GetHistory(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error)

	// Cleanup purges terminal queue items, finished sessions and expired
	// tombstones older than daysOld. Privileged maintenance operation.
	Cleanup(ctx context.Context, daysOld int) (*CleanupResult, error)

	// SweepDueRetries re-processes pending items whose backoff has elapsed.
	// Runs outside any request path, driven by the scheduler.
	SweepDueRetries(ctx context.Context, now time.Time, limit int) (int, error)
}

// Config carries the engine tunables
type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	return c
}

type service struct {
	cfg        Config
	queue      repository.Queue
	conflicts  repository.Conflicts
	changes    repository.Changes
	versions   version.Service
	watermarks watermark.Manager
	sessions   synclog.Service
	items      *validation.ItemValidator
	payloads   validation.PayloadValidator
	resolver   conflict.Service
	locks      *concurrency.LockManager
	pool       *worker.Pool
	bus        event.Bus
	authz      Authorizer
}

// NewService creates the synchronization engine
func NewService(
	cfg Config,
	queue repository.Queue,
	conflicts repository.Conflicts,
	changes repository.Changes,
	versions version.Service,
	watermarks watermark.Manager,
	sessions synclog.Service,
	items *validation.ItemValidator,
	payloads validation.PayloadValidator,
	resolver conflict.Service,
	locks *concurrency.LockManager,
	pool *worker.Pool,
	bus event.Bus,
	authz Authorizer,
) Service {
	if authz == nil {
		authz = AllowAll{}
	}
	return &service{
		cfg:        cfg.withDefaults(),
		queue:      queue,
		conflicts:  conflicts,
		changes:    changes,
		versions:   versions,
		watermarks: watermarks,
		sessions:   sessions,
		items:      items,
		payloads:   payloads,
		resolver:   resolver,
		locks:      locks,
		pool:       pool,
		bus:        bus,
		authz:      authz,
	}
}

func (s *service) GetStatus(ctx context.Context, userID string, deviceID *string) (*domain.SyncStatus, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}

	counts, err := s.queue.CountByStatus(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	openConflicts, err := s.conflicts.CountOpen(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	lastSynced, err := s.sessions.LastCompleted(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	return &domain.SyncStatus{
		PendingItems: counts[domain.StatusPending],
		SyncingItems: counts[domain.StatusSyncing],
		FailedItems:  counts[domain.StatusFailed],
		Conflicts:    openConflicts,
		LastSyncedAt: lastSynced,
	}, nil
}

func (s *service) GetConflicts(ctx context.Context, userID string) ([]domain.SyncConflict, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	return s.conflicts.GetOpenByUser(ctx, userID)
}

func (s *service) ResolveConflict(ctx context.Context, conflictID uuid.UUID, resolution domain.Resolution, resolvedBy string, mergedData json.RawMessage) (*conflict.ResolveResult, error) {
	if resolvedBy == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	return s.resolver.Resolve(ctx, conflictID, resolution, resolvedBy, mergedData)
}

func (s *service) GetHistory(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	return s.sessions.History(ctx, userID, limit, deviceID)
}

func (s *service) Cleanup(ctx context.Context, daysOld int) (*CleanupResult, error) {
	if daysOld <= 0 {
		return nil, fmt.Errorf("%w: daysOld must be positive", domain.ErrValidation)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)

	result := &CleanupResult{}
	var err error

	if result.QueueItemsPurged, err = s.queue.CleanupTerminal(ctx, cutoff); err != nil {
		return nil, err
	}
	metrics.ItemsCleaned.Add(float64(result.QueueItemsPurged))

	if result.SessionsPurged, err = s.sessions.Cleanup(ctx, cutoff); err != nil {
		return nil, err
	}
	if result.TombstonesPurged, err = s.changes.DeleteTombstonesBefore(ctx, cutoff); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info(LogMsgCleanupFinished,
		"queue_items", result.QueueItemsPurged,
		"sessions", result.SessionsPurged,
		"tombstones", result.TombstonesPurged,
	)
	return result, nil
}
