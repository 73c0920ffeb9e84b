package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/database/internal/schemacheck"
)

// ledgerColumn pairs a column as information_schema reports it with the
// declaration that creates it.
type ledgerColumn struct {
	schemacheck.Column
	decl string
}

// ledgerColumns is the upload ledger in table order.
var ledgerColumns = []ledgerColumn{
	{schemacheck.Column{Name: "id", Type: "uuid"}, "UUID PRIMARY KEY DEFAULT gen_random_uuid()"},
	{schemacheck.Column{Name: "path", Type: "text"}, "TEXT NOT NULL UNIQUE"},
	{schemacheck.Column{Name: "owner", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "content_type", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "etag", Type: "text"}, "TEXT NOT NULL"},
	{schemacheck.Column{Name: "size_bytes", Type: "bigint"}, "BIGINT NOT NULL"},
	{schemacheck.Column{Name: "created_at", Type: "timestamp with time zone"}, "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
	{schemacheck.Column{Name: "updated_at", Type: "timestamp with time zone"}, "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
}

func createLedgerSQL(table string) string {
	defs := make([]string, len(ledgerColumns))
	for i, c := range ledgerColumns {
		defs[i] = c.Name + " " + c.decl
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pgx.Identifier{table}.Sanitize(), strings.Join(defs, ",\n\t"))
}

func ownerIndexName(table string) string {
	return "idx_" + table + "_owner"
}

// ValidateSchema checks that the ledger table exists in the current schema
// with the expected columns, types and nullability.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, lower(data_type), is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1`,
		tables.Uploads,
	)
	if err != nil {
		return fmt.Errorf("validate schema: read columns: %w", err)
	}

	got, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schemacheck.Column, error) {
		var c schemacheck.Column
		err := row.Scan(&c.Name, &c.Type, &c.Nullable)
		return c, err
	})
	if err != nil {
		return fmt.Errorf("validate schema: read columns: %w", err)
	}

	want := make([]schemacheck.Column, len(ledgerColumns))
	for i, c := range ledgerColumns {
		want[i] = c.Column
	}
	return schemacheck.Diff(tables.Uploads, want, got)
}
