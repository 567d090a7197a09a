package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which kind of record a mutation or change refers to.
// The set mirrors the entities managed by the case-management API.
type EntityType string

const (
	EntityGestante  EntityType = "gestante"
	EntityControl   EntityType = "control"
	EntityAlerta    EntityType = "alerta"
	EntityUsuario   EntityType = "usuario"
	EntityIPS       EntityType = "ips"
	EntityMedico    EntityType = "medico"
	EntityMunicipio EntityType = "municipio"
)

// AllEntityTypes lists every entity type the engine accepts
var AllEntityTypes = []EntityType{
	EntityGestante,
	EntityControl,
	EntityAlerta,
	EntityUsuario,
	EntityIPS,
	EntityMedico,
	EntityMunicipio,
}

// Valid reports whether the entity type is one the engine knows about
func (e EntityType) Valid() bool {
	for _, known := range AllEntityTypes {
		if e == known {
			return true
		}
	}
	return false
}

// Operation is the kind of mutation a device queued
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether the operation is recognized
func (o Operation) Valid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// QueueStatus is the processing state of a queued mutation
type QueueStatus string

const (
	StatusPending  QueueStatus = "pending"
	StatusSyncing  QueueStatus = "syncing"
	StatusSynced   QueueStatus = "synced"
	StatusFailed   QueueStatus = "failed"
	StatusConflict QueueStatus = "conflict"
)

// CanTransitionTo enforces the queue item state machine:
// pending -> syncing -> {synced|failed|conflict}, plus syncing -> pending
// for transient failures that will be retried. A conflict item moves to
// synced or failed once its conflict is resolved.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSyncing
	case StatusSyncing:
		return next == StatusSynced || next == StatusFailed || next == StatusConflict || next == StatusPending
	case StatusConflict:
		return next == StatusSynced || next == StatusFailed
	default:
		// synced and failed are terminal
		return false
	}
}

// Terminal reports whether the status is an end state
func (s QueueStatus) Terminal() bool {
	return s == StatusSynced || s == StatusFailed || s == StatusConflict
}

// Resolution is how a conflict was settled
type Resolution string

const (
	ResolutionLocalWins  Resolution = "local_wins"
	ResolutionServerWins Resolution = "server_wins"
	ResolutionMerge      Resolution = "merge"
	ResolutionManual     Resolution = "manual"
)

// Valid reports whether the resolution is recognized
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionLocalWins, ResolutionServerWins, ResolutionMerge, ResolutionManual:
		return true
	}
	return false
}

// RequiresMergedData reports whether the resolution needs a caller-supplied payload
func (r Resolution) RequiresMergedData() bool {
	return r == ResolutionMerge || r == ResolutionManual
}

// SyncType distinguishes the kind of sync session
type SyncType string

const (
	SyncTypePush SyncType = "push"
	SyncTypePull SyncType = "pull"
	SyncTypeFull SyncType = "full"
)

// Sync session statuses recorded on SyncLog
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionPartial    = "completed_with_errors"
	SessionFailed     = "failed"
)

// SyncQueueItem is one queued mutation from one device.
// Items are created at push intake, mutated only by the engine, and kept
// after reaching a terminal state for audit.
type SyncQueueItem struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	DeviceID      *string         `json:"device_id,omitempty"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Operation     Operation       `json:"operation"`
	Data          json.RawMessage `json:"data"`
	ClientVersion int64           `json:"client_version"`
	Status        QueueStatus     `json:"status"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	ConflictID    *uuid.UUID      `json:"conflict_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SyncedAt      *time.Time      `json:"synced_at,omitempty"`
}

// EntityVersion is the canonical concurrency token for one entity.
// Exactly one row exists per (entity_type, entity_id); version starts at 1
// on first write and only ever increases.
type EntityVersion struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Version    int64           `json:"version"`
	Data       json.RawMessage `json:"data,omitempty"`
	DataHash   string          `json:"data_hash"`
	Deleted    bool            `json:"deleted"`
	UpdatedBy  string          `json:"updated_by"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SyncConflict records a divergence between a device's assumed state and the
// canonical state. Resolved conflicts are immutable and never deleted.
type SyncConflict struct {
	ID            uuid.UUID       `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	LocalVersion  int64           `json:"local_version"`
	ServerVersion int64           `json:"server_version"`
	LocalData     json.RawMessage `json:"local_data"`
	ServerData    json.RawMessage `json:"server_data"`
	UserID        string          `json:"user_id"`
	DeviceID      *string         `json:"device_id,omitempty"`
	QueueItemID   uuid.UUID       `json:"queue_item_id"`
	Resolved      bool            `json:"resolved"`
	Resolution    *Resolution     `json:"resolution,omitempty"`
	ResolvedBy    *string         `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SyncLog is the append-only audit record of one sync session
type SyncLog struct {
	ID             uuid.UUID              `json:"id"`
	UserID         string                 `json:"user_id"`
	DeviceID       *string                `json:"device_id,omitempty"`
	SyncType       SyncType               `json:"sync_type"`
	EntitiesSynced int                    `json:"entities_synced"`
	EntitiesFailed int                    `json:"entities_failed"`
	Conflicts      int                    `json:"conflicts"`
	DurationMs     int64                  `json:"duration_ms"`
	Status         string                 `json:"status"`
	ErrorMessage   *string                `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// PushItem is one mutation as submitted by a device
type PushItem struct {
	EntityType     EntityType      `json:"entity_type" validate:"entitytype"`
	EntityID       string          `json:"entity_id" validate:"required"`
	Operation      Operation       `json:"operation" validate:"required,oneof=create update delete"`
	Data           json.RawMessage `json:"data"`
	Version        int64           `json:"version" validate:"gte=0"`
	LocalTimestamp *time.Time      `json:"local_timestamp,omitempty"`
}

// ItemResult is the per-item outcome of a push batch
type ItemResult struct {
	ItemID        uuid.UUID       `json:"item_id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Status        QueueStatus     `json:"status"`
	NewVersion    int64           `json:"new_version,omitempty"`
	ServerVersion int64           `json:"server_version,omitempty"`
	ServerData    json.RawMessage `json:"server_data,omitempty"`
	ConflictID    *uuid.UUID      `json:"conflict_id,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// SyncBatchResult summarizes a push session.
// A batch is partially successful by design: one item's conflict or failure
// never blocks independent items.
type SyncBatchResult struct {
	TotalItems  int          `json:"total_items"`
	SyncedItems int          `json:"synced_items"`
	FailedItems int          `json:"failed_items"`
	Conflicts   int          `json:"conflicts"`
	Items       []ItemResult `json:"items"`
	SyncLogID   uuid.UUID    `json:"sync_log_id"`
}

// EntityChange is one changed entity in a pull response
type EntityChange struct {
	Seq        int64           `json:"seq"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  Operation       `json:"operation"`
	Data       json.RawMessage `json:"data,omitempty"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Tombstone marks a deleted entity so devices that missed the delete can
// still reconcile it
type Tombstone struct {
	Seq        int64      `json:"seq"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	DeletedAt  time.Time  `json:"deleted_at"`
}

// SyncPullResult is everything past a device's watermark
type SyncPullResult struct {
	Changes      []EntityChange `json:"changes"`
	DeletedIDs   []Tombstone    `json:"deleted_ids"`
	NewWatermark string         `json:"new_watermark"`
	TotalChanges int            `json:"total_changes"`
}

// FullSyncResult combines a push and the pull that follows it
type FullSyncResult struct {
	Push *SyncBatchResult `json:"push"`
	Pull *SyncPullResult  `json:"pull"`
}

// SyncStatus summarizes a caller's outstanding sync work
type SyncStatus struct {
	PendingItems int        `json:"pending_items"`
	SyncingItems int        `json:"syncing_items"`
	FailedItems  int        `json:"failed_items"`
	Conflicts    int        `json:"conflicts"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
