package repository

import (
	"context"
	"encoding/json"

	"github.com/maternar/sync-engine/internal/domain"
)

// Change is one accepted mutation to write through the version store.
// DataHash is computed by the caller over the canonical payload.
type Change struct {
	EntityType domain.EntityType
	EntityID   string
	Operation  domain.Operation
	Data       json.RawMessage
	DataHash   string
	UpdatedBy  string
}

// Versions defines the interface for the canonical per-entity version store.
// Every write bumps the version and appends to the change log in the same
// transaction, so the change feed and the version counter cannot diverge.
type Versions interface {
	// Get returns the version row for an entity, or domain.ErrEntityNotFound
	Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error)

	// InsertFirst creates the version row at version 1 together with the first
	// change log entry. A concurrent create losing the race returns
	// applied=false so the caller can surface a conflict.
	InsertFirst(ctx context.Context, ch Change) (row *domain.EntityVersion, applied bool, err error)

	// ApplyCAS bumps the version from expectedVersion to expectedVersion+1
	// with a conditional update, writes the new payload snapshot and hash, and
	// appends a change log entry, all in one transaction. applied=false means
	// the expected version no longer matched (lost the race).
	ApplyCAS(ctx context.Context, ch Change, expectedVersion int64) (row *domain.EntityVersion, applied bool, err error)
}
