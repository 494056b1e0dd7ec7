package sqlite

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a shared in-memory database unique to the calling
// test, with the same split writer/reader shape as production, and
// applies the schema. The database lives until the test's cleanup
// closes the last connection.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// mode=memory&cache=shared keeps one database visible to both
	// connection pools; the escaped test name isolates parallel tests.
	// WAL does not apply to in-memory databases, so the journal_mode
	// pragma is omitted here.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	writer, err := openConn(dsn, 1)
	require.NoError(t, err, "open test db writer")

	reader, err := openConn(dsn, 4)
	if err != nil {
		_ = writer.Close()
	}
	require.NoError(t, err, "open test db reader")

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
