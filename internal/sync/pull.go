package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/event"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/metrics"
	"github.com/maternar/sync-engine/internal/synclog"
)

func (s *service) Pull(ctx context.Context, userID string, deviceID *string, watermarkToken string, entityTypes []domain.EntityType) (*domain.SyncPullResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}

	session, err := s.sessions.StartSession(ctx, userID, deviceID, domain.SyncTypePull)
	if err != nil {
		return nil, err
	}

	result, err := s.doPull(ctx, userID, watermarkToken, entityTypes)
	if err != nil {
		msg := err.Error()
		_ = s.sessions.FinishSession(ctx, session, synclog.Outcome{ErrorMessage: &msg})
		return nil, err
	}

	_ = s.sessions.FinishSession(ctx, session, synclog.Outcome{
		EntitiesSynced: result.TotalChanges,
	})
	s.publishPullCompleted(ctx, userID, deviceID, session, result)
	return result, nil
}

func (s *service) Full(ctx context.Context, userID string, deviceID *string, items []domain.PushItem, watermarkToken string, entityTypes []domain.EntityType) (*domain.FullSyncResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}

	// Reject a bad watermark before applying any mutations: a device that is
	// desynchronized on the pull side should not half-sync
	if _, err := s.watermarks.Parse(ctx, watermarkToken); err != nil {
		return nil, err
	}

	session, err := s.sessions.StartSession(ctx, userID, deviceID, domain.SyncTypeFull)
	if err != nil {
		return nil, err
	}

	push := s.doPush(ctx, userID, deviceID, items)
	push.SyncLogID = session.ID

	// The pull baseline is the watermark the device sent, not the post-push
	// sequence, so the device's own just-applied writes come back in the same
	// response and it can confirm them without a second round trip
	pull, err := s.doPull(ctx, userID, watermarkToken, entityTypes)
	if err != nil {
		msg := err.Error()
		_ = s.sessions.FinishSession(ctx, session, synclog.Outcome{
			EntitiesSynced: push.SyncedItems,
			EntitiesFailed: push.FailedItems,
			Conflicts:      push.Conflicts,
			ErrorMessage:   &msg,
		})
		return nil, err
	}

	_ = s.sessions.FinishSession(ctx, session, synclog.Outcome{
		EntitiesSynced: push.SyncedItems,
		EntitiesFailed: push.FailedItems,
		Conflicts:      push.Conflicts,
	})
	s.publishPushCompleted(ctx, userID, deviceID, session, push)
	s.publishPullCompleted(ctx, userID, deviceID, session, pull)

	return &domain.FullSyncResult{Push: push, Pull: pull}, nil
}

func (s *service) doPull(ctx context.Context, userID string, watermarkToken string, entityTypes []domain.EntityType) (*domain.SyncPullResult, error) {
	sinceSeq, err := s.watermarks.Parse(ctx, watermarkToken)
	if err != nil {
		return nil, err
	}

	filter, err := s.pullFilter(ctx, userID, entityTypes)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		// Caller may read nothing: an empty result at the same watermark
		return &domain.SyncPullResult{NewWatermark: s.watermarks.Issue(sinceSeq)}, nil
	}

	page, err := s.changes.ListSince(ctx, sinceSeq, filter)
	if err != nil {
		return nil, err
	}

	// The watermark only advances past sequences actually handed to the
	// device; with no changes the old checkpoint is reissued
	newSeq := sinceSeq
	if page.MaxSeq > newSeq {
		newSeq = page.MaxSeq
	}

	for _, ch := range page.Changes {
		metrics.PullChanges.WithLabelValues(string(ch.EntityType)).Inc()
	}

	result := &domain.SyncPullResult{
		Changes:      page.Changes,
		DeletedIDs:   page.Tombstones,
		NewWatermark: s.watermarks.Issue(newSeq),
		TotalChanges: len(page.Changes) + len(page.Tombstones),
	}
	logger.FromContext(ctx).Info(LogMsgPullFinished,
		"user_id", userID,
		"since_seq", sinceSeq,
		"changes", len(page.Changes),
		"tombstones", len(page.Tombstones),
	)
	return result, nil
}

// pullFilter intersects the requested entity types with what the caller is
// authorized to see. No requested types means everything visible.
func (s *service) pullFilter(ctx context.Context, userID string, requested []domain.EntityType) ([]domain.EntityType, error) {
	visible, err := s.authz.VisibleEntityTypes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return visible, nil
	}

	visibleSet := make(map[domain.EntityType]struct{}, len(visible))
	for _, et := range visible {
		visibleSet[et] = struct{}{}
	}

	filter := make([]domain.EntityType, 0, len(requested))
	for _, et := range requested {
		if !et.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, et)
		}
		if _, ok := visibleSet[et]; ok {
			filter = append(filter, et)
		}
	}
	return filter, nil
}

func (s *service) publishPullCompleted(ctx context.Context, userID string, deviceID *string, session *synclog.Session, result *domain.SyncPullResult) {
	payload := event.PullCompletedPayloadV1{
		UserID:     userID,
		Changes:    len(result.Changes),
		Tombstones: len(result.DeletedIDs),
		DurationMs: time.Since(session.StartedAt).Milliseconds(),
	}
	if deviceID != nil {
		payload.DeviceID = *deviceID
	}
	s.publish(ctx, event.NewPullCompletedEvent(payload))
}
