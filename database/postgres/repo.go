// Package postgres implements the upload ledger using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosdav/nosdav"
)

// Repo implements nosdav.UploadRepo on a pgx connection pool.
type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables nosdav.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: pgx.Identifier{tables.Uploads}.Sanitize()}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) Get(ctx context.Context, path string) (nosdav.Upload, error) {
	query := fmt.Sprintf(`
		SELECT id, path, owner, content_type, etag, size_bytes, created_at, updated_at
		FROM %s
		WHERE path = $1
	`, r.tableName)

	var u nosdav.Upload
	var owner string
	err := r.pool.QueryRow(ctx, query, path).Scan(
		&u.ID, &u.Path, &owner, &u.ContentType, &u.ETag, &u.SizeBytes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nosdav.Upload{}, nosdav.ErrNotFound
		}
		return nosdav.Upload{}, fmt.Errorf("get: %w", err)
	}
	u.Owner = nosdav.Identity(owner)

	return u, nil
}

// Upsert records entry, replacing any existing record for the same path.
// The record keeps its id and created_at across replacements.
func (r *Repo) Upsert(ctx context.Context, entry nosdav.UploadEntry) (nosdav.Upload, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (path, owner, content_type, etag, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE
		SET owner = EXCLUDED.owner,
			content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = NOW()
		RETURNING id, path, owner, content_type, etag, size_bytes, created_at, updated_at,
			(xmax = 0) AS inserted
	`, r.tableName)

	var u nosdav.Upload
	var owner string
	var inserted bool

	err := r.pool.QueryRow(ctx, query, entry.Path, string(entry.Owner), entry.ContentType, entry.ETag, entry.SizeBytes).Scan(
		&u.ID, &u.Path, &owner, &u.ContentType, &u.ETag, &u.SizeBytes, &u.CreatedAt, &u.UpdatedAt, &inserted,
	)
	if err != nil {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: %w", err)
	}
	u.Owner = nosdav.Identity(owner)

	return u, inserted, nil
}

// CountByOwner returns how many files each owner has recorded.
func (r *Repo) CountByOwner(ctx context.Context) (map[nosdav.Identity]int, error) {
	query := fmt.Sprintf(`SELECT owner, COUNT(*) FROM %s GROUP BY owner`, r.tableName)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by owner: %w", err)
	}
	defer rows.Close()

	counts := make(map[nosdav.Identity]int)
	for rows.Next() {
		var owner string
		var n int
		if err := rows.Scan(&owner, &n); err != nil {
			return nil, fmt.Errorf("count by owner: scan: %w", err)
		}
		counts[nosdav.Identity(owner)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by owner: rows: %w", err)
	}

	return counts, nil
}
