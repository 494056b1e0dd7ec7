package driven

import (
	"context"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// DraftStore defines the driven port for draft persistence. Drafts must
// survive process restarts.
type DraftStore interface {
	// Save upserts the draft and stamps its LastModified time.
	Save(ctx context.Context, draft model.Draft) error
	// Get returns nil, nil when the draft does not exist.
	Get(ctx context.Context, id string) (*model.Draft, error)
	// ListIDs returns all draft IDs, most recently modified first.
	ListIDs(ctx context.Context) ([]string, error)
	// Remove permanently deletes the draft and its attached files.
	Remove(ctx context.Context, id string) error
	// Sweep removes drafts whose LastModified is older than maxAge and
	// returns how many were evicted.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}
