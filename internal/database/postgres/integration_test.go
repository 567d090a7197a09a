package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

func strPtr(s string) *string { return &s }

func newQueueItem(userID string, entityType domain.EntityType, entityID string) *domain.SyncQueueItem {
	now := time.Now().UTC()
	return &domain.SyncQueueItem{
		ID:            uuid.New(),
		UserID:        userID,
		EntityType:    entityType,
		EntityID:      entityID,
		Operation:     domain.OpCreate,
		Data:          json.RawMessage(`{"nombre":"Ana"}`),
		ClientVersion: 0,
		Status:        domain.StatusPending,
		MaxRetries:    5,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestQueueRepository_Integration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	repo := NewQueueRepository(pool)

	t.Run("Enqueue And GetByID", func(t *testing.T) {
		item := newQueueItem("user-q1", domain.EntityGestante, "g-100")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{item}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		got, err := repo.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != domain.StatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
		if got.EntityType != domain.EntityGestante || got.EntityID != "g-100" {
			t.Errorf("unexpected entity identity: %s/%s", got.EntityType, got.EntityID)
		}
	})

	t.Run("GetByID Missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		if !errors.Is(err, domain.ErrQueueItemNotFound) {
			t.Errorf("expected ErrQueueItemNotFound, got %v", err)
		}
	})

	t.Run("MarkSynced Is Guarded", func(t *testing.T) {
		item := newQueueItem("user-q2", domain.EntityControl, "c-200")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{item}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		syncedAt := time.Now().UTC()
		if err := repo.MarkSynced(ctx, item.ID, syncedAt); err != nil {
			t.Fatalf("MarkSynced failed: %v", err)
		}

		got, err := repo.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != domain.StatusSynced {
			t.Errorf("expected synced, got %s", got.Status)
		}
		if got.SyncedAt == nil {
			t.Error("expected synced_at to be set")
		}

		// A terminal row never rewinds
		if err := repo.MarkFailed(ctx, item.ID, "late failure"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if err := repo.MarkSynced(ctx, item.ID, syncedAt); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition on double MarkSynced, got %v", err)
		}
	})

	t.Run("Conflict Then ResolveItem", func(t *testing.T) {
		item := newQueueItem("user-q3", domain.EntityAlerta, "a-300")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{item}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		conflictID := uuid.New()
		if err := repo.MarkConflict(ctx, item.ID, conflictID); err != nil {
			t.Fatalf("MarkConflict failed: %v", err)
		}

		got, err := repo.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != domain.StatusConflict {
			t.Fatalf("expected conflict, got %s", got.Status)
		}
		if got.ConflictID == nil || *got.ConflictID != conflictID {
			t.Error("expected conflict_id to be linked")
		}

		// Resolution moves the item to its final outcome
		if err := repo.ResolveItem(ctx, item.ID, domain.StatusSynced, nil, time.Now().UTC()); err != nil {
			t.Fatalf("ResolveItem failed: %v", err)
		}
		got, err = repo.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != domain.StatusSynced {
			t.Errorf("expected synced after resolution, got %s", got.Status)
		}
		if got.SyncedAt == nil {
			t.Error("expected synced_at after resolution")
		}

		// Second resolution finds no conflict row left
		if err := repo.ResolveItem(ctx, item.ID, domain.StatusFailed, strPtr("x"), time.Now().UTC()); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("ResolveItem Rejects Non Terminal Outcome", func(t *testing.T) {
		err := repo.ResolveItem(ctx, uuid.New(), domain.StatusPending, nil, time.Now().UTC())
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("RequeueForRetry And GetDueForRetry", func(t *testing.T) {
		item := newQueueItem("user-q4", domain.EntityGestante, "g-400")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{item}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		nextRetry := time.Now().UTC().Add(-time.Minute)
		if err := repo.RequeueForRetry(ctx, item.ID, 1, nextRetry, "store temporarily unavailable"); err != nil {
			t.Fatalf("RequeueForRetry failed: %v", err)
		}

		due, err := repo.GetDueForRetry(ctx, time.Now().UTC(), 10)
		if err != nil {
			t.Fatalf("GetDueForRetry failed: %v", err)
		}
		found := false
		for _, d := range due {
			if d.ID == item.ID {
				found = true
				if d.RetryCount != 1 {
					t.Errorf("expected retry_count 1, got %d", d.RetryCount)
				}
			}
		}
		if !found {
			t.Error("expected requeued item to be due for retry")
		}

		// An item whose window has not passed is not due
		future := newQueueItem("user-q4", domain.EntityGestante, "g-401")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{future}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if err := repo.RequeueForRetry(ctx, future.ID, 1, time.Now().UTC().Add(time.Hour), "later"); err != nil {
			t.Fatalf("RequeueForRetry failed: %v", err)
		}
		due, err = repo.GetDueForRetry(ctx, time.Now().UTC(), 100)
		if err != nil {
			t.Fatalf("GetDueForRetry failed: %v", err)
		}
		for _, d := range due {
			if d.ID == future.ID {
				t.Error("item inside its backoff window must not be due")
			}
		}
	})

	t.Run("CountByStatus", func(t *testing.T) {
		userID := "user-q5"
		a := newQueueItem(userID, domain.EntityGestante, "g-500")
		b := newQueueItem(userID, domain.EntityGestante, "g-501")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{a, b}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if err := repo.MarkFailed(ctx, b.ID, "terminal"); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}

		counts, err := repo.CountByStatus(ctx, userID, nil)
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[domain.StatusPending] != 1 {
			t.Errorf("expected 1 pending, got %d", counts[domain.StatusPending])
		}
		if counts[domain.StatusFailed] != 1 {
			t.Errorf("expected 1 failed, got %d", counts[domain.StatusFailed])
		}
	})

	t.Run("CleanupTerminal Keeps Active Items", func(t *testing.T) {
		userID := "user-q6"
		active := newQueueItem(userID, domain.EntityGestante, "g-600")
		done := newQueueItem(userID, domain.EntityGestante, "g-601")
		if err := repo.Enqueue(ctx, []*domain.SyncQueueItem{active, done}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if err := repo.MarkSynced(ctx, done.ID, time.Now().UTC()); err != nil {
			t.Fatalf("MarkSynced failed: %v", err)
		}

		// Cutoff in the future purges every terminal row, old or not
		purged, err := repo.CleanupTerminal(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("CleanupTerminal failed: %v", err)
		}
		if purged < 1 {
			t.Errorf("expected at least 1 purged, got %d", purged)
		}

		if _, err := repo.GetByID(ctx, active.ID); err != nil {
			t.Errorf("active item must survive cleanup: %v", err)
		}
		if _, err := repo.GetByID(ctx, done.ID); !errors.Is(err, domain.ErrQueueItemNotFound) {
			t.Errorf("expected terminal item to be purged, got %v", err)
		}
	})
}

func TestVersionsRepository_Integration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	repo := NewVersionsRepository(pool)

	change := func(entityID string, data string) repository.Change {
		return repository.Change{
			EntityType: domain.EntityGestante,
			EntityID:   entityID,
			Operation:  domain.OpUpdate,
			Data:       json.RawMessage(data),
			DataHash:   "hash-" + data,
			UpdatedBy:  "user-v1",
		}
	}

	t.Run("InsertFirst Creates Version One", func(t *testing.T) {
		ch := change("g-1", `{"semana":12}`)
		ch.Operation = domain.OpCreate
		row, applied, err := repo.InsertFirst(ctx, ch)
		if err != nil {
			t.Fatalf("InsertFirst failed: %v", err)
		}
		if !applied {
			t.Fatal("expected first insert to apply")
		}
		if row.Version != 1 {
			t.Errorf("expected version 1, got %d", row.Version)
		}

		// A concurrent create losing the race sees applied=false
		_, applied, err = repo.InsertFirst(ctx, ch)
		if err != nil {
			t.Fatalf("second InsertFirst failed: %v", err)
		}
		if applied {
			t.Error("expected duplicate insert to report applied=false")
		}
	})

	t.Run("ApplyCAS Bumps And Rejects Stale", func(t *testing.T) {
		ch := change("g-2", `{"semana":20}`)
		ch.Operation = domain.OpCreate
		if _, applied, err := repo.InsertFirst(ctx, ch); err != nil || !applied {
			t.Fatalf("seed failed: applied=%v err=%v", applied, err)
		}

		row, applied, err := repo.ApplyCAS(ctx, change("g-2", `{"semana":21}`), 1)
		if err != nil {
			t.Fatalf("ApplyCAS failed: %v", err)
		}
		if !applied || row.Version != 2 {
			t.Fatalf("expected applied version 2, got applied=%v version=%d", applied, row.Version)
		}

		// Replaying against the old version must not apply
		_, applied, err = repo.ApplyCAS(ctx, change("g-2", `{"semana":99}`), 1)
		if err != nil {
			t.Fatalf("stale ApplyCAS errored: %v", err)
		}
		if applied {
			t.Error("expected stale ApplyCAS to report applied=false")
		}

		got, err := repo.Get(ctx, domain.EntityGestante, "g-2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Version != 2 {
			t.Errorf("expected canonical version 2, got %d", got.Version)
		}
	})

	t.Run("Delete Sets Tombstone Flag", func(t *testing.T) {
		ch := change("g-3", `{"semana":30}`)
		ch.Operation = domain.OpCreate
		if _, applied, err := repo.InsertFirst(ctx, ch); err != nil || !applied {
			t.Fatalf("seed failed: applied=%v err=%v", applied, err)
		}

		del := change("g-3", `{}`)
		del.Operation = domain.OpDelete
		row, applied, err := repo.ApplyCAS(ctx, del, 1)
		if err != nil {
			t.Fatalf("delete ApplyCAS failed: %v", err)
		}
		if !applied || !row.Deleted {
			t.Errorf("expected applied deleted row, got applied=%v deleted=%v", applied, row.Deleted)
		}
	})

	t.Run("Get Missing Entity", func(t *testing.T) {
		_, err := repo.Get(ctx, domain.EntityGestante, "no-such")
		if !errors.Is(err, domain.ErrEntityNotFound) {
			t.Errorf("expected ErrEntityNotFound, got %v", err)
		}
	})
}

func TestConflictsRepository_Integration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	repo := NewConflictsRepository(pool)

	newConflict := func(userID string) *domain.SyncConflict {
		return &domain.SyncConflict{
			ID:            uuid.New(),
			EntityType:    domain.EntityControl,
			EntityID:      "c-1",
			LocalVersion:  1,
			ServerVersion: 3,
			LocalData:     json.RawMessage(`{"peso":62}`),
			ServerData:    json.RawMessage(`{"peso":64}`),
			UserID:        userID,
			QueueItemID:   uuid.New(),
			CreatedAt:     time.Now().UTC(),
		}
	}

	t.Run("Record And GetByID", func(t *testing.T) {
		c := newConflict("user-c1")
		if err := repo.Record(ctx, c); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Resolved {
			t.Error("freshly recorded conflict must be unresolved")
		}
		if got.LocalVersion != 1 || got.ServerVersion != 3 {
			t.Errorf("unexpected versions: local=%d server=%d", got.LocalVersion, got.ServerVersion)
		}
	})

	t.Run("MarkResolved Is Exactly Once", func(t *testing.T) {
		c := newConflict("user-c2")
		if err := repo.Record(ctx, c); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		resolvedAt := time.Now().UTC()
		if err := repo.MarkResolved(ctx, c.ID, domain.ResolutionServerWins, "medico-1", resolvedAt); err != nil {
			t.Fatalf("MarkResolved failed: %v", err)
		}

		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if !got.Resolved || got.Resolution == nil || *got.Resolution != domain.ResolutionServerWins {
			t.Error("expected resolved conflict with server_wins resolution")
		}

		// The guarded update rejects a second claim
		err = repo.MarkResolved(ctx, c.ID, domain.ResolutionLocalWins, "medico-2", time.Now().UTC())
		if !errors.Is(err, domain.ErrConflictResolved) {
			t.Errorf("expected ErrConflictResolved, got %v", err)
		}
	})

	t.Run("Reopen Releases A Claim", func(t *testing.T) {
		c := newConflict("user-c5")
		if err := repo.Record(ctx, c); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := repo.MarkResolved(ctx, c.ID, domain.ResolutionLocalWins, "medico-1", time.Now().UTC()); err != nil {
			t.Fatalf("MarkResolved failed: %v", err)
		}

		if err := repo.Reopen(ctx, c.ID); err != nil {
			t.Fatalf("Reopen failed: %v", err)
		}
		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Resolved || got.Resolution != nil || got.ResolvedBy != nil {
			t.Error("expected reopened conflict with the claim fields cleared")
		}

		// Reopening an open conflict is a no-op, a missing one is an error
		if err := repo.Reopen(ctx, c.ID); err != nil {
			t.Fatalf("Reopen of an open conflict failed: %v", err)
		}
		if err := repo.Reopen(ctx, uuid.New()); !errors.Is(err, domain.ErrConflictNotFound) {
			t.Errorf("expected ErrConflictNotFound, got %v", err)
		}

		// The claim can be taken again after the release
		if err := repo.MarkResolved(ctx, c.ID, domain.ResolutionServerWins, "medico-2", time.Now().UTC()); err != nil {
			t.Errorf("MarkResolved after Reopen failed: %v", err)
		}
	})

	t.Run("GetOpenByUser And CountOpen", func(t *testing.T) {
		userID := "user-c3"
		open := newConflict(userID)
		closed := newConflict(userID)
		if err := repo.Record(ctx, open); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := repo.Record(ctx, closed); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := repo.MarkResolved(ctx, closed.ID, domain.ResolutionManual, "medico-1", time.Now().UTC()); err != nil {
			t.Fatalf("MarkResolved failed: %v", err)
		}

		conflicts, err := repo.GetOpenByUser(ctx, userID)
		if err != nil {
			t.Fatalf("GetOpenByUser failed: %v", err)
		}
		if len(conflicts) != 1 || conflicts[0].ID != open.ID {
			t.Errorf("expected only the open conflict, got %d", len(conflicts))
		}

		n, err := repo.CountOpen(ctx, userID, nil)
		if err != nil {
			t.Fatalf("CountOpen failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 open conflict, got %d", n)
		}
	})

	t.Run("GetByID Missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		if !errors.Is(err, domain.ErrConflictNotFound) {
			t.Errorf("expected ErrConflictNotFound, got %v", err)
		}
	})
}

func TestChangesRepository_Integration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	versions := NewVersionsRepository(pool)
	changes := NewChangesRepository(pool)

	write := func(t *testing.T, entityType domain.EntityType, entityID, data string, op domain.Operation, expected int64) {
		t.Helper()
		ch := repository.Change{
			EntityType: entityType,
			EntityID:   entityID,
			Operation:  op,
			Data:       json.RawMessage(data),
			DataHash:   fmt.Sprintf("h-%s-%d", entityID, expected),
			UpdatedBy:  "user-ch",
		}
		var applied bool
		var err error
		if expected == 0 {
			_, applied, err = versions.InsertFirst(ctx, ch)
		} else {
			_, applied, err = versions.ApplyCAS(ctx, ch, expected)
		}
		if err != nil || !applied {
			t.Fatalf("write %s@%d failed: applied=%v err=%v", entityID, expected, applied, err)
		}
	}

	baseSeq, err := changes.CurrentSeq(ctx)
	if err != nil {
		t.Fatalf("CurrentSeq failed: %v", err)
	}

	write(t, domain.EntityGestante, "g-10", `{"v":1}`, domain.OpCreate, 0)
	write(t, domain.EntityGestante, "g-10", `{"v":2}`, domain.OpUpdate, 1)
	write(t, domain.EntityControl, "c-10", `{"v":1}`, domain.OpCreate, 0)
	write(t, domain.EntityControl, "c-10", `{}`, domain.OpDelete, 1)

	t.Run("ListSince Returns Latest State Per Entity", func(t *testing.T) {
		page, err := changes.ListSince(ctx, baseSeq, nil)
		if err != nil {
			t.Fatalf("ListSince failed: %v", err)
		}

		// g-10 was written twice but appears once, at its latest version
		var gestante *domain.EntityChange
		for i := range page.Changes {
			if page.Changes[i].EntityID == "g-10" {
				if gestante != nil {
					t.Fatal("entity appeared more than once in the feed")
				}
				gestante = &page.Changes[i]
			}
		}
		if gestante == nil {
			t.Fatal("expected g-10 in the change feed")
		}
		if gestante.Version != 2 {
			t.Errorf("expected latest version 2, got %d", gestante.Version)
		}

		// c-10 ended deleted, so it surfaces as a tombstone, not a change
		for _, ch := range page.Changes {
			if ch.EntityID == "c-10" {
				t.Error("deleted entity must not appear as a live change")
			}
		}
		var tombstoned bool
		for _, tomb := range page.Tombstones {
			if tomb.EntityID == "c-10" {
				tombstoned = true
			}
		}
		if !tombstoned {
			t.Error("expected tombstone for c-10")
		}

		if page.MaxSeq <= baseSeq {
			t.Errorf("expected MaxSeq to advance past %d, got %d", baseSeq, page.MaxSeq)
		}
	})

	t.Run("ListSince Honors Entity Filter", func(t *testing.T) {
		page, err := changes.ListSince(ctx, baseSeq, []domain.EntityType{domain.EntityGestante})
		if err != nil {
			t.Fatalf("ListSince failed: %v", err)
		}
		for _, ch := range page.Changes {
			if ch.EntityType != domain.EntityGestante {
				t.Errorf("filter leaked entity type %s", ch.EntityType)
			}
		}
		for _, tomb := range page.Tombstones {
			if tomb.EntityType != domain.EntityGestante {
				t.Errorf("filter leaked tombstone type %s", tomb.EntityType)
			}
		}
	})

	t.Run("ListSince Past The Head Is Empty", func(t *testing.T) {
		head, err := changes.CurrentSeq(ctx)
		if err != nil {
			t.Fatalf("CurrentSeq failed: %v", err)
		}
		page, err := changes.ListSince(ctx, head, nil)
		if err != nil {
			t.Fatalf("ListSince failed: %v", err)
		}
		if len(page.Changes) != 0 || len(page.Tombstones) != 0 {
			t.Errorf("expected empty page, got %d changes %d tombstones",
				len(page.Changes), len(page.Tombstones))
		}
	})

	t.Run("DeleteTombstonesBefore", func(t *testing.T) {
		purged, err := changes.DeleteTombstonesBefore(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("DeleteTombstonesBefore failed: %v", err)
		}
		if purged < 1 {
			t.Errorf("expected at least 1 tombstone purged, got %d", purged)
		}
	})
}

func TestSyncLogsRepository_Integration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	repo := NewSyncLogsRepository(pool)

	start := func(t *testing.T, userID string, syncType domain.SyncType) *domain.SyncLog {
		t.Helper()
		log := &domain.SyncLog{
			ID:        uuid.New(),
			UserID:    userID,
			SyncType:  syncType,
			StartedAt: time.Now().UTC(),
		}
		if err := repo.Start(ctx, log); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		return log
	}

	t.Run("Start Finish History", func(t *testing.T) {
		userID := "user-s1"
		log := start(t, userID, domain.SyncTypePush)

		completedAt := time.Now().UTC()
		outcome := repository.SessionOutcome{
			Status:         domain.SessionCompleted,
			EntitiesSynced: 4,
			DurationMs:     125,
		}
		if err := repo.Finish(ctx, log.ID, completedAt, outcome); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		history, err := repo.History(ctx, userID, 10, nil)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 session, got %d", len(history))
		}
		got := history[0]
		if got.Status != domain.SessionCompleted || got.EntitiesSynced != 4 {
			t.Errorf("unexpected session: status=%s synced=%d", got.Status, got.EntitiesSynced)
		}
		if got.CompletedAt == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("History Newest First With Limit", func(t *testing.T) {
		userID := "user-s2"
		first := start(t, userID, domain.SyncTypePush)
		// Distinct started_at values so ordering is deterministic
		second := &domain.SyncLog{
			ID:        uuid.New(),
			UserID:    userID,
			SyncType:  domain.SyncTypePull,
			StartedAt: first.StartedAt.Add(time.Second),
		}
		if err := repo.Start(ctx, second); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		history, err := repo.History(ctx, userID, 1, nil)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 session with limit 1, got %d", len(history))
		}
		if history[0].ID != second.ID {
			t.Error("expected the newest session first")
		}
	})

	t.Run("LastCompleted Ignores In Progress Sessions", func(t *testing.T) {
		userID := "user-s3"
		done := start(t, userID, domain.SyncTypeFull)
		completedAt := time.Now().UTC().Truncate(time.Millisecond)
		if err := repo.Finish(ctx, done.ID, completedAt, repository.SessionOutcome{
			Status: domain.SessionCompleted,
		}); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		start(t, userID, domain.SyncTypePush) // still in progress

		last, err := repo.LastCompleted(ctx, userID, nil)
		if err != nil {
			t.Fatalf("LastCompleted failed: %v", err)
		}
		if last == nil {
			t.Fatal("expected a completion time")
		}
		if !last.Equal(completedAt) {
			t.Errorf("expected %v, got %v", completedAt, *last)
		}
	})

	t.Run("Cleanup Purges Old Finished Sessions", func(t *testing.T) {
		userID := "user-s4"
		old := start(t, userID, domain.SyncTypePush)
		if err := repo.Finish(ctx, old.ID, time.Now().UTC(), repository.SessionOutcome{
			Status: domain.SessionCompleted,
		}); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		running := start(t, userID, domain.SyncTypePull)

		purged, err := repo.Cleanup(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if purged < 1 {
			t.Errorf("expected at least 1 session purged, got %d", purged)
		}

		history, err := repo.History(ctx, userID, 10, nil)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(history) != 1 || history[0].ID != running.ID {
			t.Error("in-progress session must survive cleanup")
		}
	})
}
