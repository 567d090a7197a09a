package worker

// Log message constants
const (
	LogMsgWorkerJobFailed    = "Worker job failed"
	LogMsgRetrySweepComplete = "Retry sweep complete"
	LogMsgCleanupComplete    = "Maintenance cleanup complete"
	LogMsgTombstoneGC        = "Tombstone garbage collection complete"
)

// Pool defaults
const (
	// DefaultWorkers is the pool size when config leaves it unset
	DefaultWorkers = 4

	// DefaultQueueSize is the job channel buffer
	DefaultQueueSize = 64

	// DefaultRetryBatchSize bounds one retry sweep
	DefaultRetryBatchSize = 50
)
