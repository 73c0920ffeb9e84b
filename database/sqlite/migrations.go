package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nosdav/nosdav"
)

// Migrate creates the ledger table and its owner index in one transaction.
// It is a no-op when both exist.
func Migrate(ctx context.Context, db *sql.DB, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	stmts := []string{
		createLedgerSQL(tables.Uploads),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (owner, path)",
			quoteIdentifier(ownerIndexName(tables.Uploads)), quoteIdentifier(tables.Uploads)),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", tables.Uploads, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// DropTables removes the ledger table and its index.
func DropTables(ctx context.Context, db *sql.DB, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(tables.Uploads)); err != nil {
		return fmt.Errorf("drop %s: %w", tables.Uploads, err)
	}
	return nil
}
