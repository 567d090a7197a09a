package repository

import (
	"context"
	"time"

	"github.com/maternar/sync-engine/internal/domain"
)

// ChangePage is one page of the sequence-ordered change feed.
// MaxSeq is the highest sequence contained in the page; callers advance their
// watermark only past sequences they have actually received.
type ChangePage struct {
	Changes    []domain.EntityChange
	Tombstones []domain.Tombstone
	MaxSeq     int64
}

// Changes defines the read side of the change feed that pull is served from.
// The feed is ordered by a single global sequence assigned at write time;
// reads hold no locks.
type Changes interface {
	// ListSince returns, for every entity whose last write has sequence
	// greater than sinceSeq, the latest state of that entity. Deletions are
	// returned as tombstones. entityTypes narrows the result when non-empty.
	ListSince(ctx context.Context, sinceSeq int64, entityTypes []domain.EntityType) (*ChangePage, error)

	// CurrentSeq returns the highest sequence assigned so far (0 when empty)
	CurrentSeq(ctx context.Context) (int64, error)

	// DeleteTombstonesBefore garbage-collects tombstones older than the cutoff
	// and returns the number removed. Only deletes past the maximum supported
	// offline window are eligible.
	DeleteTombstonesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
