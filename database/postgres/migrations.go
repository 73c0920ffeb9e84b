package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosdav/nosdav"
)

// Migrate creates the ledger table and its owner index in one transaction.
// It is a no-op when both exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	table := pgx.Identifier{tables.Uploads}.Sanitize()
	index := pgx.Identifier{ownerIndexName(tables.Uploads)}.Sanitize()

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createLedgerSQL(tables.Uploads)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (owner, path)", index, table))
		return err
	})
	if err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Uploads, err)
	}
	return nil
}

// DropTables removes the ledger table and its index.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables nosdav.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{tables.Uploads}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("drop %s: %w", tables.Uploads, err)
	}
	return nil
}
