// Package sqlite implements the upload ledger using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nosdav/nosdav"
)

// Repo implements nosdav.UploadRepo on a SQLite database.
type Repo struct {
	db        *sql.DB
	tableName string
}

func NewRepo(db *sql.DB, tables nosdav.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{db: db, tableName: quoteIdentifier(tables.Uploads)}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repo) Get(ctx context.Context, path string) (nosdav.Upload, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, path, owner, content_type, etag, size_bytes, created_at, updated_at
		FROM %s
		WHERE path = ?`, r.tableName)

	u, err := scanUpload(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nosdav.Upload{}, nosdav.ErrNotFound
		}
		return nosdav.Upload{}, fmt.Errorf("get: %w", err)
	}

	return u, nil
}

// Upsert records entry, replacing any existing record for the same path.
// The record keeps its id and created_at across replacements.
func (r *Repo) Upsert(ctx context.Context, entry nosdav.UploadEntry) (nosdav.Upload, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID, existingCreatedAt string
	checkQuery := fmt.Sprintf(`SELECT id, created_at FROM %s WHERE path = ?`, r.tableName) //nolint:gosec // table name is validated
	err = tx.QueryRowContext(ctx, checkQuery, entry.Path).Scan(&existingID, &existingCreatedAt)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := existingID
	createdAt := existingCreatedAt

	if isInsert {
		id = uuid.New().String()
		createdAt = now

		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (id, path, owner, content_type, etag, size_bytes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName)

		_, err = tx.ExecContext(ctx, insertQuery,
			id, entry.Path, string(entry.Owner), entry.ContentType, entry.ETag, entry.SizeBytes, now, now,
		)
		if err != nil {
			return nosdav.Upload{}, false, fmt.Errorf("upsert: insert: %w", err)
		}
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET owner = ?, content_type = ?, etag = ?, size_bytes = ?, updated_at = ?
			WHERE path = ?`, r.tableName)

		_, err = tx.ExecContext(ctx, updateQuery,
			string(entry.Owner), entry.ContentType, entry.ETag, entry.SizeBytes, now, entry.Path,
		)
		if err != nil {
			return nosdav.Upload{}, false, fmt.Errorf("upsert: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	u := nosdav.Upload{
		Path:        entry.Path,
		Owner:       entry.Owner,
		ContentType: entry.ContentType,
		ETag:        entry.ETag,
		SizeBytes:   entry.SizeBytes,
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: parse uuid: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nosdav.Upload{}, false, fmt.Errorf("upsert: parse created_at: %w", err)
	}
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, now)

	return u, isInsert, nil
}

// CountByOwner returns how many files each owner has recorded.
func (r *Repo) CountByOwner(ctx context.Context) (map[nosdav.Identity]int, error) {
	query := fmt.Sprintf(`SELECT owner, COUNT(*) FROM %s GROUP BY owner`, r.tableName) //nolint:gosec // table name is validated

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by owner: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (nosdav.Upload, error) {
	var u nosdav.Upload
	var idStr, owner, createdAt, updatedAt string

	if err := row.Scan(&idStr, &u.Path, &owner, &u.ContentType, &u.ETag, &u.SizeBytes, &createdAt, &updatedAt); err != nil {
		return nosdav.Upload{}, err
	}
	u.Owner = nosdav.Identity(owner)

	var err error
	if u.ID, err = uuid.Parse(idStr); err != nil {
		return nosdav.Upload{}, fmt.Errorf("parse uuid: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nosdav.Upload{}, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nosdav.Upload{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return u, nil
}
