package postgres

// PostgreSQL error codes the engine treats as transient.
// Items failing with these are requeued with backoff rather than failed.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeCannotConnectNow     = "57P03"
	pgCodeTooManyConnections   = "53300"
	pgCodeConnectionException  = "08000"
	pgCodeConnectionFailure    = "08006"
)
