package version

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

// MockRepository is a mock implementation of the repository.Versions interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EntityVersion), args.Error(1)
}

func (m *MockRepository) InsertFirst(ctx context.Context, ch repository.Change) (*domain.EntityVersion, bool, error) {
	args := m.Called(ctx, ch)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.EntityVersion), args.Bool(1), args.Error(2)
}

func (m *MockRepository) ApplyCAS(ctx context.Context, ch repository.Change, expectedVersion int64) (*domain.EntityVersion, bool, error) {
	args := m.Called(ctx, ch, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.EntityVersion), args.Bool(1), args.Error(2)
}
