package version

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/repository"
)

// ApplyRequest is one mutation to reconcile against the canonical version
type ApplyRequest struct {
	EntityType    domain.EntityType
	EntityID      string
	Operation     domain.Operation
	Data          json.RawMessage
	ClientVersion int64
	UpdatedBy     string
}

// ApplyResult is the outcome of a compare-and-apply
type ApplyResult struct {
	Applied    bool
	NoOp       bool // resubmission recognized via data hash, nothing reapplied
	NewVersion int64

	// Conflict payload, set when Applied is false
	ServerVersion int64
	ServerData    json.RawMessage
}

// Service is the canonical version store: the single serialization point for
// writes to one (entityType, entityId).
type Service interface {
	// CompareAndApply reconciles a client mutation against the canonical
	// version. Exactly one of two racing callers with the same baseline sees
	// Applied=true; the other receives the current server state as a conflict.
	CompareAndApply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)

	// ApplyResolution writes a conflict-resolution payload at the current
	// canonical version, bumping it exactly once. Unlike CompareAndApply it
	// never short-circuits on a matching hash: a resolved conflict always
	// leaves a change log trace. ClientVersion on the request is ignored.
	ApplyResolution(ctx context.Context, req ApplyRequest) (*ApplyResult, error)

	// Get returns the canonical version row for an entity
	Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error)
}

type service struct {
	repo repository.Versions
}

// NewService creates a new version store service
func NewService(repo repository.Versions) Service {
	return &service{repo: repo}
}

// HashData returns the content fingerprint used to recognize no-op
// resubmissions. Payloads are canonicalized (compacted) first so formatting
// differences between retries do not defeat the check.
func HashData(data json.RawMessage) string {
	var buf bytes.Buffer
	if len(data) > 0 {
		if err := json.Compact(&buf, data); err != nil {
			buf.Reset()
			buf.Write(data)
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func (s *service) Get(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityVersion, error) {
	return s.repo.Get(ctx, entityType, entityID)
}

func (s *service) CompareAndApply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if !req.EntityType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, req.EntityType)
	}
	if !req.Operation.Valid() {
		return nil, fmt.Errorf("%w: operation %q", domain.ErrValidation, req.Operation)
	}

	log := logger.FromContext(ctx)

	data := req.Data
	if req.Operation == domain.OpDelete {
		// Tombstones carry no payload
		data = nil
	}
	ch := repository.Change{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Operation:  req.Operation,
		Data:       data,
		DataHash:   HashData(data),
		UpdatedBy:  req.UpdatedBy,
	}

	current, err := s.repo.Get(ctx, req.EntityType, req.EntityID)
	if err != nil && !errors.Is(err, domain.ErrEntityNotFound) {
		return nil, err
	}

	if current == nil {
		return s.applyFirst(ctx, req, ch)
	}

	if req.ClientVersion > current.Version {
		// The client claims a version it never legitimately observed.
		// Accepting it could overwrite newer server state, so this is a hard
		// protocol error: the device must re-pull before resubmitting.
		return nil, fmt.Errorf("%w: client version %d ahead of server version %d for %s/%s",
			domain.ErrProtocol, req.ClientVersion, current.Version, req.EntityType, req.EntityID)
	}

	// Idempotency: a retry after a dropped acknowledgment carries the payload
	// the server already holds; short-circuit without a new write
	if req.Operation != domain.OpDelete && !current.Deleted && ch.DataHash == current.DataHash {
		log.Debug("No-op resubmission recognized", "entity_type", req.EntityType, "entity_id", req.EntityID)
		return &ApplyResult{Applied: true, NoOp: true, NewVersion: current.Version}, nil
	}

	// Delete of an already-deleted entity is idempotent, replayed or not
	if req.Operation == domain.OpDelete && current.Deleted {
		return &ApplyResult{Applied: true, NoOp: true, NewVersion: current.Version}, nil
	}

	if req.ClientVersion < current.Version {
		return conflictResult(current), nil
	}

	return s.applyCAS(ctx, req, ch)
}

func (s *service) applyFirst(ctx context.Context, req ApplyRequest, ch repository.Change) (*ApplyResult, error) {
	if req.Operation == domain.OpDelete {
		// Delete of an entity the server never saw: replayed push, no-op
		return &ApplyResult{Applied: true, NoOp: true, NewVersion: 0}, nil
	}
	if req.Operation != domain.OpCreate {
		return nil, fmt.Errorf("%w: update of unknown entity %s/%s",
			domain.ErrProtocol, req.EntityType, req.EntityID)
	}
	if req.ClientVersion != 0 {
		return nil, fmt.Errorf("%w: create with version %d for %s/%s",
			domain.ErrProtocol, req.ClientVersion, req.EntityType, req.EntityID)
	}

	row, applied, err := s.repo.InsertFirst(ctx, ch)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a create race; re-read for the conflict payload
		current, err := s.repo.Get(ctx, req.EntityType, req.EntityID)
		if err != nil {
			return nil, err
		}
		return conflictResult(current), nil
	}
	return &ApplyResult{Applied: true, NewVersion: row.Version}, nil
}

func (s *service) applyCAS(ctx context.Context, req ApplyRequest, ch repository.Change) (*ApplyResult, error) {
	row, applied, err := s.repo.ApplyCAS(ctx, ch, req.ClientVersion)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Version moved between our read and the conditional update
		current, err := s.repo.Get(ctx, req.EntityType, req.EntityID)
		if err != nil {
			return nil, err
		}
		if current.Version < req.ClientVersion {
			return nil, fmt.Errorf("%w: client version %d ahead of server version %d for %s/%s",
				domain.ErrProtocol, req.ClientVersion, current.Version, req.EntityType, req.EntityID)
		}
		return conflictResult(current), nil
	}
	return &ApplyResult{Applied: true, NewVersion: row.Version}, nil
}

// resolutionApplyAttempts bounds the CAS loop when a concurrent push moves
// the version between the read and the conditional update
const resolutionApplyAttempts = 3

func (s *service) ApplyResolution(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if !req.EntityType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, req.EntityType)
	}

	data := req.Data
	op := domain.OpUpdate
	if len(data) == 0 {
		// The losing mutation was a delete; resolving in its favor deletes
		op = domain.OpDelete
		data = nil
	}
	ch := repository.Change{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Operation:  op,
		Data:       data,
		DataHash:   HashData(data),
		UpdatedBy:  req.UpdatedBy,
	}

	for attempt := 0; attempt < resolutionApplyAttempts; attempt++ {
		current, err := s.repo.Get(ctx, req.EntityType, req.EntityID)
		if err != nil {
			return nil, err
		}
		row, applied, err := s.repo.ApplyCAS(ctx, ch, current.Version)
		if err != nil {
			return nil, err
		}
		if applied {
			return &ApplyResult{Applied: true, NewVersion: row.Version}, nil
		}
	}
	return nil, fmt.Errorf("%w: resolution for %s/%s kept losing the version race",
		domain.ErrTransientStore, req.EntityType, req.EntityID)
}

func conflictResult(current *domain.EntityVersion) *ApplyResult {
	return &ApplyResult{
		Applied:       false,
		ServerVersion: current.Version,
		ServerData:    current.Data,
	}
}
