package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Validation errors
	ErrMsgValidation        = "validation failed"
	ErrMsgUnknownEntityType = "unknown entity type"

	// Concurrency errors
	ErrMsgProtocol = "client desynchronized"

	// Store errors
	ErrMsgTransientStore = "store temporarily unavailable"

	// Queue errors
	ErrMsgQueueItemNotFound = "queue item not found"
	ErrMsgInvalidTransition = "invalid status transition"
	ErrMsgRetriesExhausted  = "retries exhausted"
	ErrMsgItemSuperseded    = "superseded by server state"

	// Conflict errors
	ErrMsgConflictNotFound = "conflict not found"
	ErrMsgConflictResolved = "conflict already resolved"
	ErrMsgMergedDataNeeded = "merged data required"

	// Watermark errors
	ErrMsgWatermarkInvalid = "invalid watermark"

	// Authorization errors
	ErrMsgUnauthorized = "not authorized"

	// Version store errors
	ErrMsgEntityNotFound = "entity version not found"
)

// Common domain errors
// These errors should be used consistently across all layers of the engine.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// ErrValidation marks malformed push items or merged data; rejected before
	// touching the version store, reported per item, the batch continues
	ErrValidation = errors.New(ErrMsgValidation)

	// ErrUnknownEntityType is a protocol-level rejection, never retried
	ErrUnknownEntityType = errors.New(ErrMsgUnknownEntityType)

	// ErrProtocol marks clientVersion ahead of the canonical version, or other
	// states retrying cannot fix; the caller must re-pull before resubmitting
	ErrProtocol = errors.New(ErrMsgProtocol)

	// ErrTransientStore marks store unavailability or deadlock; retried with
	// backoff up to the item's max retries
	ErrTransientStore = errors.New(ErrMsgTransientStore)

	// Queue errors
	ErrQueueItemNotFound = errors.New(ErrMsgQueueItemNotFound)
	ErrInvalidTransition = errors.New(ErrMsgInvalidTransition)

	// Conflict errors
	ErrConflictNotFound = errors.New(ErrMsgConflictNotFound)
	ErrConflictResolved = errors.New(ErrMsgConflictResolved)
	ErrMergedDataNeeded = errors.New(ErrMsgMergedDataNeeded)

	// Watermark errors
	ErrWatermarkInvalid = errors.New(ErrMsgWatermarkInvalid)

	// Authorization errors (owned by the collaborator, surfaced batch-level)
	ErrUnauthorized = errors.New(ErrMsgUnauthorized)

	// Version store errors
	ErrEntityNotFound = errors.New(ErrMsgEntityNotFound)
)
