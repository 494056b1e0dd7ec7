package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncMetaStore = (*SyncMetaRepo)(nil)

// SyncMetaRepo is the SQLite implementation of the SyncMetaStore port
// interface, one row per (collection, owner).
type SyncMetaRepo struct {
	db *DB
}

// NewSyncMetaRepo creates a new SyncMetaRepo backed by the given DB.
func NewSyncMetaRepo(db *DB) *SyncMetaRepo {
	return &SyncMetaRepo{db: db}
}

// Upsert inserts or replaces the sync metadata for one collection/owner.
func (r *SyncMetaRepo) Upsert(ctx context.Context, meta model.SyncMetadata) error {
	const query = `
		INSERT INTO sync_metadata (collection, owner_id, last_sync_at, record_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, owner_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			record_count = excluded.record_count
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		meta.Collection, meta.OwnerID, meta.LastSyncAt.UTC(), meta.RecordCount,
	)
	if err != nil {
		return fmt.Errorf("upsert sync metadata %s/%s: %w", meta.Collection, meta.OwnerID, err)
	}

	return nil
}

// Get retrieves the sync metadata for one collection/owner. Returns
// nil, nil when the collection has never synced.
func (r *SyncMetaRepo) Get(ctx context.Context, collection, ownerID string) (*model.SyncMetadata, error) {
	const query = `
		SELECT collection, owner_id, last_sync_at, record_count
		FROM sync_metadata
		WHERE collection = ? AND owner_id = ?
	`

	var (
		meta       model.SyncMetadata
		lastSyncAt time.Time
	)
	err := r.db.Reader.QueryRowContext(ctx, query, collection, ownerID).Scan(
		&meta.Collection, &meta.OwnerID, &lastSyncAt, &meta.RecordCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync metadata %s/%s: %w", collection, ownerID, err)
	}

	meta.LastSyncAt = lastSyncAt.UTC()
	return &meta, nil
}
