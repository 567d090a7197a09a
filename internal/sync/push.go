package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/event"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/metrics"
	"github.com/maternar/sync-engine/internal/synclog"
	"github.com/maternar/sync-engine/internal/version"
	"github.com/maternar/sync-engine/internal/worker"
)

func (s *service) Push(ctx context.Context, userID string, deviceID *string, items []domain.PushItem) (*domain.SyncBatchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}

	session, err := s.sessions.StartSession(ctx, userID, deviceID, domain.SyncTypePush)
	if err != nil {
		return nil, err
	}

	result := s.doPush(ctx, userID, deviceID, items)
	result.SyncLogID = session.ID

	_ = s.sessions.FinishSession(ctx, session, synclog.Outcome{
		EntitiesSynced: result.SyncedItems,
		EntitiesFailed: result.FailedItems,
		Conflicts:      result.Conflicts,
	})
	s.publishPushCompleted(ctx, userID, deviceID, session, result)

	return result, nil
}

// entityGroup holds one entity's queued items in submission order, plus the
// index of each item in the caller's batch so results line up.
type entityGroup struct {
	indexes []int
	items   []*domain.SyncQueueItem
}

func (s *service) doPush(ctx context.Context, userID string, deviceID *string, items []domain.PushItem) *domain.SyncBatchResult {
	log := logger.FromContext(ctx)
	log.Info(LogMsgPushStarted, "user_id", userID, "items", len(items))

	now := time.Now().UTC()
	results := make([]domain.ItemResult, len(items))
	queueItems := make([]*domain.SyncQueueItem, 0, len(items))
	groups := make(map[string]*entityGroup)
	groupOrder := make([]string, 0)

	for i, item := range items {
		qi := &domain.SyncQueueItem{
			ID:            uuid.New(),
			UserID:        userID,
			DeviceID:      deviceID,
			EntityType:    item.EntityType,
			EntityID:      item.EntityID,
			Operation:     item.Operation,
			Data:          item.Data,
			ClientVersion: item.Version,
			Status:        domain.StatusPending,
			MaxRetries:    s.cfg.MaxRetries,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		results[i] = domain.ItemResult{
			ItemID:     qi.ID,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
		}

		if err := s.validatePushItem(ctx, userID, item); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				// Access-control rejection: reported to the caller but not
				// recorded as a sync failure
				results[i].Status = domain.StatusFailed
				results[i].Error = err.Error()
				continue
			}
			// Persisted as a failed queue row so an offline client can read
			// the reason back through getStatus later
			msg := err.Error()
			qi.Status = domain.StatusFailed
			qi.ErrorMessage = &msg
			queueItems = append(queueItems, qi)
			results[i].Status = domain.StatusFailed
			results[i].Error = msg
			metrics.ItemsPushed.WithLabelValues(string(item.EntityType), string(domain.StatusFailed)).Inc()
			continue
		}

		queueItems = append(queueItems, qi)
		key := string(item.EntityType) + ":" + item.EntityID
		g, ok := groups[key]
		if !ok {
			g = &entityGroup{}
			groups[key] = g
			groupOrder = append(groupOrder, key)
		}
		g.indexes = append(g.indexes, i)
		g.items = append(g.items, qi)
	}

	if err := s.queue.Enqueue(ctx, queueItems); err != nil {
		// Nothing durable exists; fail every item that was headed for the queue
		msg := err.Error()
		for i := range results {
			if results[i].Status == "" {
				results[i].Status = domain.StatusFailed
				results[i].Error = msg
			}
		}
		return summarize(results)
	}

	// Entity groups fan out across the pool; items within a group stay
	// strictly in submission order. Each goroutine writes disjoint result
	// slots, so no mutex is needed.
	var wg sync.WaitGroup
	for _, key := range groupOrder {
		group := groups[key]
		wg.Add(1)
		s.pool.Enqueue(worker.JobFunc(func(context.Context) error {
			defer wg.Done()
			for n, qi := range group.items {
				results[group.indexes[n]] = s.processItem(ctx, qi)
			}
			return nil
		}))
	}
	wg.Wait()

	batch := summarize(results)
	log.Info(LogMsgPushFinished,
		"user_id", userID,
		"synced", batch.SyncedItems,
		"failed", batch.FailedItems,
		"conflicts", batch.Conflicts,
	)
	return batch
}

func (s *service) validatePushItem(ctx context.Context, userID string, item domain.PushItem) error {
	if err := s.items.ValidateItem(item); err != nil {
		return err
	}
	if item.Operation != domain.OpDelete {
		if err := s.payloads.Validate(item.EntityType, item.Data); err != nil {
			return err
		}
	}
	return s.authz.AuthorizePush(ctx, userID, item)
}

// processItem runs one queued mutation through the version store and persists
// its terminal state. Called with the item pending; the entity lock serializes
// against the retry sweeper and concurrent resolutions on the same entity.
func (s *service) processItem(ctx context.Context, item *domain.SyncQueueItem) domain.ItemResult {
	result := domain.ItemResult{
		ItemID:     item.ID,
		EntityType: item.EntityType,
		EntityID:   item.EntityID,
	}

	var applied *version.ApplyResult
	var applyErr error
	s.locks.WithEntityLock(item.EntityType, item.EntityID, func() {
		applied, applyErr = s.versions.CompareAndApply(ctx, version.ApplyRequest{
			EntityType:    item.EntityType,
			EntityID:      item.EntityID,
			Operation:     item.Operation,
			Data:          item.Data,
			ClientVersion: item.ClientVersion,
			UpdatedBy:     item.UserID,
		})
	})

	switch {
	case applyErr == nil && applied.Applied:
		s.markStatus(ctx, item, &result, domain.StatusSynced, func() error {
			return s.queue.MarkSynced(ctx, item.ID, time.Now().UTC())
		})
		result.NewVersion = applied.NewVersion

	case applyErr == nil:
		s.recordConflict(ctx, item, applied, &result)

	case errors.Is(applyErr, domain.ErrTransientStore):
		s.scheduleRetry(ctx, item, applyErr, &result)

	default:
		// Protocol and validation errors are terminal; retrying cannot fix
		// client/server desynchronization
		s.markStatus(ctx, item, &result, domain.StatusFailed, func() error {
			return s.queue.MarkFailed(ctx, item.ID, applyErr.Error())
		})
		result.Error = applyErr.Error()
	}

	if result.Status.Terminal() {
		metrics.ItemsPushed.WithLabelValues(string(item.EntityType), string(result.Status)).Inc()
	}
	return result
}

func (s *service) recordConflict(ctx context.Context, item *domain.SyncQueueItem, applied *version.ApplyResult, result *domain.ItemResult) {
	log := logger.FromContext(ctx)

	conflict := &domain.SyncConflict{
		ID:            uuid.New(),
		EntityType:    item.EntityType,
		EntityID:      item.EntityID,
		LocalVersion:  item.ClientVersion,
		ServerVersion: applied.ServerVersion,
		LocalData:     item.Data,
		ServerData:    applied.ServerData,
		UserID:        item.UserID,
		DeviceID:      item.DeviceID,
		QueueItemID:   item.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.conflicts.Record(ctx, conflict); err != nil {
		// Without a conflict row there is nothing to resolve; surface the
		// item as failed rather than losing the divergence
		s.markStatus(ctx, item, result, domain.StatusFailed, func() error {
			return s.queue.MarkFailed(ctx, item.ID, err.Error())
		})
		result.Error = err.Error()
		return
	}

	s.markStatus(ctx, item, result, domain.StatusConflict, func() error {
		return s.queue.MarkConflict(ctx, item.ID, conflict.ID)
	})
	result.ConflictID = &conflict.ID
	result.ServerVersion = applied.ServerVersion
	result.ServerData = applied.ServerData

	log.Info(LogMsgConflictRecorded,
		"conflict_id", conflict.ID,
		"entity_type", item.EntityType,
		"entity_id", item.EntityID,
		"local_version", item.ClientVersion,
		"server_version", applied.ServerVersion,
	)
	s.publish(ctx, event.NewConflictDetectedEvent(event.ConflictDetectedPayloadV1{
		ConflictID:    conflict.ID.String(),
		EntityType:    item.EntityType,
		EntityID:      item.EntityID,
		LocalVersion:  item.ClientVersion,
		ServerVersion: applied.ServerVersion,
		UserID:        item.UserID,
	}))
}

func (s *service) scheduleRetry(ctx context.Context, item *domain.SyncQueueItem, applyErr error, result *domain.ItemResult) {
	log := logger.FromContext(ctx)
	retryCount := item.RetryCount + 1

	if retryCount >= item.MaxRetries {
		msg := fmt.Sprintf("%s: %s", domain.ErrMsgRetriesExhausted, applyErr.Error())
		s.markStatus(ctx, item, result, domain.StatusFailed, func() error {
			return s.queue.MarkFailed(ctx, item.ID, msg)
		})
		result.Error = msg
		log.Warn(LogMsgItemExhausted, "item_id", item.ID, "retries", item.RetryCount)
		s.publish(ctx, event.NewItemRetryExceededEvent(event.ItemRetryExceededPayloadV1{
			ItemID:     item.ID.String(),
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			UserID:     item.UserID,
			Retries:    retryCount,
			LastError:  applyErr.Error(),
		}))
		return
	}

	delay := worker.Backoff(s.cfg.BackoffBase, s.cfg.BackoffMax, item.RetryCount)
	nextRetryAt := time.Now().UTC().Add(delay)
	s.markStatus(ctx, item, result, domain.StatusPending, func() error {
		return s.queue.RequeueForRetry(ctx, item.ID, retryCount, nextRetryAt, applyErr.Error())
	})
	result.Error = applyErr.Error()
	metrics.RetriesScheduled.WithLabelValues(string(item.EntityType)).Inc()
	log.Info(LogMsgItemRequeued, "item_id", item.ID, "retry_count", retryCount, "next_retry_at", nextRetryAt)
}

// markStatus applies a queue status write and folds a write failure into the
// result rather than dropping it
func (s *service) markStatus(ctx context.Context, item *domain.SyncQueueItem, result *domain.ItemResult, status domain.QueueStatus, write func() error) {
	result.Status = status
	if err := write(); err != nil {
		logger.FromContext(ctx).Error(LogMsgStatusWriteError,
			"item_id", item.ID, "status", status, "error", err)
		if result.Error == "" {
			result.Error = err.Error()
		}
	}
}

// SweepDueRetries re-processes pending items whose backoff window has passed.
// Each item takes its entity lock, so a sweep racing a live push on the same
// entity still serializes.
func (s *service) SweepDueRetries(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.queue.GetDueForRetry(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	for _, item := range due {
		s.processItem(ctx, item)
	}
	return len(due), nil
}

func (s *service) publishPushCompleted(ctx context.Context, userID string, deviceID *string, session *synclog.Session, result *domain.SyncBatchResult) {
	payload := event.PushCompletedPayloadV1{
		UserID:     userID,
		Synced:     result.SyncedItems,
		Failed:     result.FailedItems,
		Conflicts:  result.Conflicts,
		DurationMs: time.Since(session.StartedAt).Milliseconds(),
	}
	if deviceID != nil {
		payload.DeviceID = *deviceID
	}
	s.publish(ctx, event.NewPushCompletedEvent(payload))
}

func (s *service) publish(ctx context.Context, evt event.Event) {
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Error(LogMsgEventPublishErr, "type", evt.Type, "error", err)
	}
}

func summarize(results []domain.ItemResult) *domain.SyncBatchResult {
	batch := &domain.SyncBatchResult{
		TotalItems: len(results),
		Items:      results,
	}
	for _, r := range results {
		switch r.Status {
		case domain.StatusSynced:
			batch.SyncedItems++
		case domain.StatusFailed:
			batch.FailedItems++
		case domain.StatusConflict:
			batch.Conflicts++
		}
	}
	return batch
}
