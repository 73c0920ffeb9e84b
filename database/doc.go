// Package database connects the upload ledger backends.
//
// The ledger records every accepted upload (path, owner, content type, etag
// and size) so reads can carry an ETag and operators can see who stored what.
// Connection management, migrations, and schema validation are handled here.
//
// # Supported Backends
//
//   - SQLite: the default, a single file next to the server
//   - PostgreSQL: for deployments that already run one, using a pgx pool
//   - none: no ledger at all
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "nosdav.db",
//	    Tables: nosdav.Tables{Uploads: "nosdav_uploads"},
//	}
//
//	repo, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
