package sync

import (
	"context"

	"github.com/maternar/sync-engine/internal/domain"
)

// Authorizer is implemented by the identity collaborator that owns roles and
// access rules. The engine never inspects roles itself: push items are checked
// before any store access, and pull reads are narrowed to the entity types the
// caller may see.
type Authorizer interface {
	// AuthorizePush reports whether the caller may submit the mutation.
	// A denial must wrap domain.ErrUnauthorized.
	AuthorizePush(ctx context.Context, userID string, item domain.PushItem) error

	// VisibleEntityTypes returns the entity types the caller may read
	VisibleEntityTypes(ctx context.Context, userID string) ([]domain.EntityType, error)
}

// AllowAll authorizes everything. Used when the embedding service handles
// access control upstream of the engine.
type AllowAll struct{}

func (AllowAll) AuthorizePush(ctx context.Context, userID string, item domain.PushItem) error {
	return nil
}

func (AllowAll) VisibleEntityTypes(ctx context.Context, userID string) ([]domain.EntityType, error) {
	return domain.AllEntityTypes, nil
}
