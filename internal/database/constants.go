package database

import "time"

// Connection pool defaults
const (
	// DefaultMinConnections is the minimum number of idle connections kept open
	DefaultMinConnections = 2

	// pingTimeout bounds the startup connectivity check
	pingTimeout = 5 * time.Second
)

// Error message constants
const (
	ErrMsgFailedToParseConnString = "failed to parse connection string"
	ErrMsgFailedToCreatePool      = "failed to create connection pool"
	ErrMsgFailedToPingDatabase    = "failed to ping database"
)

// Log message constants
const (
	LogMsgConnected = "Connected to database"
)
