package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/maternar/sync-engine/internal/domain"
)

// EventSchemaVersion is the current event schema version
const EventSchemaVersion = "1.0"

// Type represents the type of an event
type Type string

// Sync event types
const (
	PushCompleted     Type = "sync.push.completed"
	PullCompleted     Type = "sync.pull.completed"
	ConflictDetected  Type = "sync.conflict.detected"
	ConflictResolved  Type = "sync.conflict.resolved"
	ItemRetryExceeded Type = "sync.item.retry_exceeded"
)

// Event represents a generic event in the system
type Event struct {
	Version  string      `json:"version"` // Event schema version (e.g., "1.0")
	Type     Type        `json:"type"`
	Payload  interface{} `json:"payload"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// Typed event payloads for type safety

// PushCompletedPayloadV1 is emitted after each push session
type PushCompletedPayloadV1 struct {
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	Synced     int    `json:"synced"`
	Failed     int    `json:"failed"`
	Conflicts  int    `json:"conflicts"`
	DurationMs int64  `json:"duration_ms"`
}

// PullCompletedPayloadV1 is emitted after each pull session
type PullCompletedPayloadV1 struct {
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	Changes    int    `json:"changes"`
	Tombstones int    `json:"tombstones"`
	DurationMs int64  `json:"duration_ms"`
}

// ConflictDetectedPayloadV1 is emitted when a push item diverges from the
// canonical version
type ConflictDetectedPayloadV1 struct {
	ConflictID    string            `json:"conflict_id"`
	EntityType    domain.EntityType `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	LocalVersion  int64             `json:"local_version"`
	ServerVersion int64             `json:"server_version"`
	UserID        string            `json:"user_id"`
}

// ConflictResolvedPayloadV1 is emitted when a conflict is settled
type ConflictResolvedPayloadV1 struct {
	ConflictID string            `json:"conflict_id"`
	Resolution domain.Resolution `json:"resolution"`
	NewVersion int64             `json:"new_version"`
	ResolvedBy string            `json:"resolved_by"`
}

// ItemRetryExceededPayloadV1 is emitted when a queue item burns its last
// retry and lands in failed
type ItemRetryExceededPayloadV1 struct {
	ItemID     string            `json:"item_id"`
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	UserID     string            `json:"user_id"`
	Retries    int               `json:"retries"`
	LastError  string            `json:"last_error"`
}

// NewPushCompletedEvent builds the event for a finished push session
func NewPushCompletedEvent(payload PushCompletedPayloadV1) Event {
	return Event{Version: EventSchemaVersion, Type: PushCompleted, Payload: payload}
}

// NewPullCompletedEvent builds the event for a finished pull session
func NewPullCompletedEvent(payload PullCompletedPayloadV1) Event {
	return Event{Version: EventSchemaVersion, Type: PullCompleted, Payload: payload}
}

// NewConflictDetectedEvent builds the event for a newly recorded conflict
func NewConflictDetectedEvent(payload ConflictDetectedPayloadV1) Event {
	return Event{Version: EventSchemaVersion, Type: ConflictDetected, Payload: payload}
}

// NewConflictResolvedEvent builds the event for a settled conflict
func NewConflictResolvedEvent(payload ConflictResolvedPayloadV1) Event {
	return Event{Version: EventSchemaVersion, Type: ConflictResolved, Payload: payload}
}

// NewItemRetryExceededEvent builds the event for an item that exhausted
// its retry budget
func NewItemRetryExceededEvent(payload ItemRetryExceededPayloadV1) Event {
	return Event{Version: EventSchemaVersion, Type: ItemRetryExceeded, Payload: payload}
}

// Handler processes a single event
type Handler func(ctx context.Context, evt Event) error

// Bus is the in-process publish/subscribe surface
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(eventType Type, handler Handler)
}

type bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus creates a new in-memory event bus
func NewBus() Bus {
	return &bus{handlers: make(map[Type][]Handler)}
}

func (b *bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers the event to every subscriber. Handler errors are
// collected; one failing handler does not stop the others.
func (b *bus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := b.handlers[evt.Type]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("encountered %d errors while handling event %s: %v", len(errs), evt.Type, errs)
	}
	return nil
}
