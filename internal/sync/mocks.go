package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
	"github.com/maternar/sync-engine/internal/synclog"
	"github.com/maternar/sync-engine/internal/version"
	"github.com/maternar/sync-engine/internal/watermark"
)

// MockQueue is a mock implementation of the repository.Queue interface
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, items []*domain.SyncQueueItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockQueue) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockQueue) MarkSynced(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	args := m.Called(ctx, id, syncedAt)
	return args.Error(0)
}

func (m *MockQueue) MarkConflict(ctx context.Context, id uuid.UUID, conflictID uuid.UUID) error {
	args := m.Called(ctx, id, conflictID)
	return args.Error(0)
}

func (m *MockQueue) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockQueue) ResolveItem(ctx context.Context, id uuid.UUID, outcome domain.QueueStatus, errorMessage *string, at time.Time) error {
	args := m.Called(ctx, id, outcome, errorMessage, at)
	return args.Error(0)
}

func (m *MockQueue) RequeueForRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, errorMessage string) error {
	args := m.Called(ctx, id, retryCount, nextRetryAt, errorMessage)
	return args.Error(0)
}

func (m *MockQueue) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]*domain.SyncQueueItem, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncQueueItem), args.Error(1)
}

func (m *MockQueue) CountByStatus(ctx context.Context, userID string, deviceID *string) (map[domain.QueueStatus]int, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.QueueStatus]int), args.Error(1)
}

func (m *MockQueue) CleanupTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockConflicts is a mock implementation of the repository.Conflicts interface
type MockConflicts struct {
	mock.Mock
}

func (m *MockConflicts) Record(ctx context.Context, conflict *domain.SyncConflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

func (m *MockConflicts) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncConflict, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncConflict), args.Error(1)
}

func (m *MockConflicts) GetOpenByUser(ctx context.Context, userID string) ([]domain.SyncConflict, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncConflict), args.Error(1)
}

func (m *MockConflicts) CountOpen(ctx context.Context, userID string, deviceID *string) (int, error) {
	args := m.Called(ctx, userID, deviceID)
	return args.Int(0), args.Error(1)
}

func (m *MockConflicts) MarkResolved(ctx context.Context, id uuid.UUID, resolution domain.Resolution, resolvedBy string, resolvedAt time.Time) error {
	args := m.Called(ctx, id, resolution, resolvedBy, resolvedAt)
	return args.Error(0)
}

func (m *MockConflicts) Reopen(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockChanges is a mock implementation of the repository.Changes interface
type MockChanges struct {
	mock.Mock
}

func (m *MockChanges) ListSince(ctx context.Context, sinceSeq int64, entityTypes []domain.EntityType) (*repository.ChangePage, error) {
	args := m.Called(ctx, sinceSeq, entityTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ChangePage), args.Error(1)
}

func (m *MockChanges) CurrentSeq(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChanges) DeleteTombstonesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockVersionService is a mock implementation of the version.Service interface
type MockVersionService struct {
	mock.Mock
}

func (m *MockVersionService) CompareAndApply(ctx context.Context, req version.ApplyRequest) (*version.ApplyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*version.ApplyResult), args.Error(1)
}

func (m *MockVersionService) ApplyResolution(ctx context.Context, req version.ApplyRequest) (*version.ApplyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*version.ApplyResult), args.Error(1)
}

func (m *MockVersionService) Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EntityVersion), args.Error(1)
}

// MockWatermarks is a mock implementation of the watermark.Manager interface
type MockWatermarks struct {
	mock.Mock
}

func (m *MockWatermarks) Issue(seq int64) string {
	args := m.Called(seq)
	return args.String(0)
}

func (m *MockWatermarks) Parse(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessions is a mock implementation of the synclog.Service interface
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) StartSession(ctx context.Context, userID string, deviceID *string, syncType domain.SyncType) (*synclog.Session, error) {
	args := m.Called(ctx, userID, deviceID, syncType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*synclog.Session), args.Error(1)
}

func (m *MockSessions) FinishSession(ctx context.Context, session *synclog.Session, outcome synclog.Outcome) error {
	args := m.Called(ctx, session, outcome)
	return args.Error(0)
}

func (m *MockSessions) History(ctx context.Context, userID string, limit int, deviceID *string) ([]domain.SyncLog, error) {
	args := m.Called(ctx, userID, limit, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncLog), args.Error(1)
}

func (m *MockSessions) LastCompleted(ctx context.Context, userID string, deviceID *string) (*time.Time, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockSessions) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockPayloadValidator is a mock implementation of validation.PayloadValidator
type MockPayloadValidator struct {
	mock.Mock
}

func (m *MockPayloadValidator) Validate(entityType domain.EntityType, data json.RawMessage) error {
	args := m.Called(entityType, data)
	return args.Error(0)
}

var _ repository.Queue = (*MockQueue)(nil)
var _ repository.Conflicts = (*MockConflicts)(nil)
var _ repository.Changes = (*MockChanges)(nil)
var _ version.Service = (*MockVersionService)(nil)
var _ watermark.Manager = (*MockWatermarks)(nil)
var _ synclog.Service = (*MockSessions)(nil)
