package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maternar/sync-engine/internal/domain"
)

// classifyStoreError wraps transient database failures with
// domain.ErrTransientStore so the engine can schedule a retry instead of
// failing the item terminally.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeSerializationFailure,
			pgCodeDeadlockDetected,
			pgCodeCannotConnectNow,
			pgCodeTooManyConnections,
			pgCodeConnectionException,
			pgCodeConnectionFailure:
			return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	return err
}
