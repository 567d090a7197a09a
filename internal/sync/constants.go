package sync

import "time"

// Log message constants
const (
	LogMsgPushStarted      = "Push session started"
	LogMsgPushFinished     = "Push session finished"
	LogMsgPullFinished     = "Pull session finished"
	LogMsgItemRequeued     = "Item requeued after transient failure"
	LogMsgItemExhausted    = "Item failed after exhausting retries"
	LogMsgConflictRecorded = "Conflict recorded"
	LogMsgCleanupFinished  = "Maintenance cleanup finished"
	LogMsgStatusWriteError = "Failed to persist queue item status"
	LogMsgEventPublishErr  = "Failed to publish event"
)

// Engine defaults, overridable through Config
const (
	DefaultMaxRetries  = 5
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 5 * time.Minute
)
