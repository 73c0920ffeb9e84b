package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// uniqueTable returns a valid ledger table name no other test uses.
func uniqueTable(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// openTestDB opens an in-memory database. A single connection is used
// because every :memory: connection is a separate database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// setupTestRepo creates a migrated repo with a unique table name.
func setupTestRepo(t *testing.T) (*sqlite.Repo, *sql.DB, nosdav.Tables) {
	t.Helper()

	ctx := context.Background()
	db := openTestDB(t)
	tables := nosdav.Tables{Uploads: uniqueTable("uploads")}

	require.NoError(t, sqlite.Migrate(ctx, db, tables), "failed to migrate")

	repo, err := sqlite.NewRepo(db, tables)
	require.NoError(t, err)

	return repo, db, tables
}
