package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DraftStore = (*DraftRepo)(nil)

// DraftRepo is the SQLite implementation of the DraftStore port
// interface. Payloads and image path lists are serialized as JSON in
// TEXT columns; the payload schema is owner-defined per draft kind and
// not validated here.
type DraftRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

// NewDraftRepo creates a new DraftRepo backed by the given DB.
func NewDraftRepo(db *DB, logger *slog.Logger) *DraftRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftRepo{db: db, logger: logger, now: time.Now}
}

// Save inserts or replaces a draft. A zero LastModified is stamped with
// the current time; a caller-provided value is preserved so restored
// drafts keep their original age.
func (r *DraftRepo) Save(ctx context.Context, draft model.Draft) error {
	const query = `
		INSERT INTO drafts (id, payload, image_paths, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			image_paths = excluded.image_paths,
			last_modified = excluded.last_modified
	`

	data := draft.Data
	if data == nil {
		data = map[string]any{}
	}
	payloadJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal draft %s payload: %w", draft.ID, err)
	}

	paths := draft.ImagePaths
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("marshal draft %s image paths: %w", draft.ID, err)
	}

	lastModified := draft.LastModified
	if lastModified.IsZero() {
		lastModified = r.now()
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		draft.ID, string(payloadJSON), string(pathsJSON), lastModified.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", draft.ID, err)
	}

	return nil
}

// Get retrieves a single draft by ID. Returns nil, nil if the draft
// does not exist.
func (r *DraftRepo) Get(ctx context.Context, id string) (*model.Draft, error) {
	const query = `
		SELECT id, payload, image_paths, last_modified
		FROM drafts
		WHERE id = ?
	`

	draft, err := scanDraft(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}

	return draft, nil
}

// ListIDs returns all draft IDs, most recently modified first.
func (r *DraftRepo) ListIDs(ctx context.Context) ([]string, error) {
	const query = `
		SELECT id
		FROM drafts
		ORDER BY last_modified DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list draft ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan draft id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft ids: %w", err)
	}

	return ids, nil
}

// Remove permanently deletes the draft row and its attached image
// files. File deletion is best-effort: a missing or locked file is
// logged and does not fail the removal.
func (r *DraftRepo) Remove(ctx context.Context, id string) error {
	draft, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if draft == nil {
		return nil
	}

	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}

	for _, path := range draft.ImagePaths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("draft image cleanup failed", "draft", id, "path", path, "error", err)
		}
	}

	return nil
}

// Sweep removes drafts whose last_modified is older than maxAge,
// including their attached files, and returns how many were evicted.
func (r *DraftRepo) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	const query = `
		SELECT id
		FROM drafts
		WHERE last_modified < ?
	`

	cutoff := r.now().Add(-maxAge).UTC()

	rows, err := r.db.Reader.QueryContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select expired drafts: %w", err)
	}

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired draft id: %w", err)
		}
		expired = append(expired, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate expired drafts: %w", err)
	}
	rows.Close()

	evicted := 0
	for _, id := range expired {
		if err := r.Remove(ctx, id); err != nil {
			r.logger.Warn("draft eviction failed", "draft", id, "error", err)
			continue
		}
		evicted++
	}

	return evicted, nil
}

// scanDraft scans a single draft row.
func scanDraft(row *sql.Row) (*model.Draft, error) {
	var (
		draft        model.Draft
		payloadJSON  string
		pathsJSON    string
		lastModified time.Time
	)

	if err := row.Scan(&draft.ID, &payloadJSON, &pathsJSON, &lastModified); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payloadJSON), &draft.Data); err != nil {
		return nil, fmt.Errorf("unmarshal draft %s payload: %w", draft.ID, err)
	}
	if err := json.Unmarshal([]byte(pathsJSON), &draft.ImagePaths); err != nil {
		return nil, fmt.Errorf("unmarshal draft %s image paths: %w", draft.ID, err)
	}
	draft.LastModified = lastModified.UTC()

	return &draft, nil
}
