package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/database/internal/schemacheck"
)

// ledgerColumn pairs a column as PRAGMA table_info reports it with the
// declaration that creates it.
type ledgerColumn struct {
	schemacheck.Column
	decl string
}

// ledgerColumns is the upload ledger in table order. Timestamps are RFC 3339
// text since SQLite has no time type.
var ledgerColumns = []ledgerColumn{
	{schemacheck.Column{Name: "id", Type: "text"}, "TEXT NOT NULL PRIMARY KEY"},
	{schemacheck.Column{Name: "path", Type: "text"}, "TEXT NOT NULL UNIQUE"},
	{schemacheck.Column{Name: "owner", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "content_type", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "etag", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "size_bytes", Type: "integer"}, "INTEGER NOT NULL"},
	{schemacheck.Column{Name: "created_at", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "updated_at", Type: "text"}, "TEXT NOT NULL"},
}

// quoteIdentifier quotes a SQLite identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createLedgerSQL(table string) string {
	defs := make([]string, len(ledgerColumns))
	for i, c := range ledgerColumns {
		defs[i] = c.Name + " " + c.decl
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdentifier(table), strings.Join(defs, ",\n\t"))
}

func ownerIndexName(table string) string {
	return "idx_" + table + "_owner"
}

// ValidateSchema checks that the ledger table exists with the expected
// columns, types and nullability.
func ValidateSchema(ctx context.Context, db *sql.DB, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT name, lower(type), "notnull" FROM pragma_table_info(?)`, tables.Uploads)
	if err != nil {
		return fmt.Errorf("validate schema: read columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var got []schemacheck.Column
	for rows.Next() {
		var c schemacheck.Column
		var notNull bool
		if err := rows.Scan(&c.Name, &c.Type, &notNull); err != nil {
			return fmt.Errorf("validate schema: scan column: %w", err)
		}
		c.Nullable = !notNull
		got = append(got, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate schema: read columns: %w", err)
	}

	want := make([]schemacheck.Column, len(ledgerColumns))
	for i, c := range ledgerColumns {
		want[i] = c.Column
	}
	return schemacheck.Diff(tables.Uploads, want, got)
}
