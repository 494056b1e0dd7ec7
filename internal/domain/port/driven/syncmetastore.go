package driven

import (
	"context"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// SyncMetaStore defines the driven port for sync metadata persistence,
// one row per (collection, owner).
type SyncMetaStore interface {
	Upsert(ctx context.Context, meta model.SyncMetadata) error
	// Get returns nil, nil when no sync has been recorded yet.
	Get(ctx context.Context, collection, ownerID string) (*model.SyncMetadata, error)
}
