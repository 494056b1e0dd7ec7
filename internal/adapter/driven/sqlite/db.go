// Package sqlite is the local persistence adapter: staged drafts and
// per-collection sync metadata in a single SQLite file that survives
// app restarts.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB holds split reader/writer connections to one SQLite file in WAL
// mode. Draft upserts and sweep deletions are serialized on the single
// writer connection so a save fired from an in-progress form can never
// hit "database is locked"; draft lists and sync metadata reads run on
// a small reader pool.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// dsnFor builds the connection string: WAL so a crash mid-write cannot
// lose committed drafts, a generous busy timeout, foreign keys on.
func dsnFor(dbPath string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)
}

// openConn opens one connection pool against dsn, capped at maxConns,
// and verifies it with a ping.
func openConn(dsn string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(maxConns)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// NewDB opens the draft store database at dbPath, creating the file on
// first run.
func NewDB(dbPath string) (*DB, error) {
	dsn := dsnFor(dbPath)

	writer, err := openConn(dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open draft store writer: %w", err)
	}

	reader, err := openConn(dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open draft store reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: dbPath}, nil
}

// Close closes both connection pools and returns the first error seen.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
