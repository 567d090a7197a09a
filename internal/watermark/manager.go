// Package watermark issues and validates the checkpoint tokens devices hold
// between sync sessions. A watermark is a server-assigned position in the
// global change sequence, never wall-clock time: clock skew and transactions
// committing out of real-time order make timestamps unsafe as checkpoints.
package watermark

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

const tokenPrefix = "wm1"

// Manager issues and validates watermark tokens
type Manager interface {
	// Issue encodes a change sequence as an opaque client-held token
	Issue(seq int64) string

	// Parse decodes a token back to a sequence. An empty token means the
	// device has never synced and requests a full pull (sequence 0). Tokens
	// ahead of the store's current sequence mean the client is desynchronized
	// and are rejected as a protocol error.
	Parse(ctx context.Context, token string) (int64, error)
}

type manager struct {
	changes repository.Changes
}

// NewManager creates a new watermark manager backed by the change feed
func NewManager(changes repository.Changes) Manager {
	return &manager{changes: changes}
}

func (m *manager) Issue(seq int64) string {
	raw := fmt.Sprintf("%s:%d", tokenPrefix, seq)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (m *manager) Parse(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: not a valid token", domain.ErrWatermarkInvalid)
	}

	prefix, seqStr, found := strings.Cut(string(decoded), ":")
	if !found || prefix != tokenPrefix {
		return 0, fmt.Errorf("%w: unrecognized format", domain.ErrWatermarkInvalid)
	}

	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("%w: bad sequence", domain.ErrWatermarkInvalid)
	}

	current, err := m.changes.CurrentSeq(ctx)
	if err != nil {
		return 0, err
	}
	if seq > current {
		return 0, fmt.Errorf("%w: watermark %d ahead of server sequence %d", domain.ErrProtocol, seq, current)
	}

	return seq, nil
}
