package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maternar/sync-engine/internal/domain"
	"github.com/maternar/sync-engine/internal/repository"
)

type changesRepository struct {
	db *pgxpool.Pool
}

// NewChangesRepository creates a new PostgreSQL change feed repository
func NewChangesRepository(db *pgxpool.Pool) repository.Changes {
	return &changesRepository{db: db}
}

// ListSince returns the latest state of every entity whose last write has
// sequence greater than sinceSeq. The DISTINCT ON collapses multiple writes
// to the same entity into one row, so repeated pulls from watermark 0 see
// each live entity exactly once.
//
// The txid fence withholds rows whose writing transaction overlaps any
// transaction still in flight. Sequences are assigned at INSERT time, so a
// later-seq row can become visible before an earlier-seq row commits;
// handing out the later sequence would advance the watermark past the
// earlier one and the client would never receive it. Fenced rows are
// delivered by the next pull, after the in-flight writers settle.
func (r *changesRepository) ListSince(ctx context.Context, sinceSeq int64, entityTypes []domain.EntityType) (*repository.ChangePage, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT DISTINCT ON (entity_type, entity_id)
			seq, entity_type, entity_id, operation, data, version, deleted, created_at
		FROM entity_change_log
		WHERE seq > $1
		  AND txid < pg_snapshot_xmin(pg_current_snapshot())`)

	args := []interface{}{sinceSeq}
	if len(entityTypes) > 0 {
		fmt.Fprintf(&queryBuilder, " AND entity_type = ANY($%d)", len(args)+1)
		types := make([]string, len(entityTypes))
		for i, et := range entityTypes {
			types[i] = string(et)
		}
		args = append(args, types)
	}
	queryBuilder.WriteString(" ORDER BY entity_type, entity_id, seq DESC")

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	page := &repository.ChangePage{MaxSeq: sinceSeq}
	for rows.Next() {
		var ch domain.EntityChange
		var deleted bool
		var createdAt time.Time
		if err := rows.Scan(&ch.Seq, &ch.EntityType, &ch.EntityID, &ch.Operation,
			&ch.Data, &ch.Version, &deleted, &createdAt); err != nil {
			return nil, classifyStoreError(err)
		}
		ch.UpdatedAt = createdAt

		if ch.Seq > page.MaxSeq {
			page.MaxSeq = ch.Seq
		}
		if deleted {
			page.Tombstones = append(page.Tombstones, domain.Tombstone{
				Seq:        ch.Seq,
				EntityType: ch.EntityType,
				EntityID:   ch.EntityID,
				DeletedAt:  createdAt,
			})
			continue
		}
		page.Changes = append(page.Changes, ch)
	}
	return page, classifyStoreError(rows.Err())
}

// CurrentSeq returns the highest sequence assigned so far
func (r *changesRepository) CurrentSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entity_change_log`).Scan(&seq)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return seq, nil
}

// DeleteTombstonesBefore garbage-collects delete markers older than the
// cutoff. Live change rows are never touched.
func (r *changesRepository) DeleteTombstonesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM entity_change_log
		WHERE deleted = TRUE AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return tag.RowsAffected(), nil
}
