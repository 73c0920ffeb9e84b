package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/database/postgres"
	"github.com/nosdav/nosdav/database/sqlite"

	_ "modernc.org/sqlite"
)

// Ledger backends accepted in Config.Type.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeNone     = "none"
)

// ErrUnsupportedType is returned by Connect for an unknown Config.Type.
var ErrUnsupportedType = errors.New("unsupported database type")

// Config selects the upload ledger backend.
type Config struct {
	Type   string        `mapstructure:"type" validate:"required,oneof=sqlite postgres none"`
	DSN    string        `mapstructure:"dsn" validate:"required_unless=Type none"`
	Tables nosdav.Tables `mapstructure:"tables"`
}

// Repo is the upload ledger returned by Connect.
type Repo interface {
	nosdav.UploadRepo
	Ping(ctx context.Context) error
	CountByOwner(ctx context.Context) (map[nosdav.Identity]int, error)
}

// step is one stage of bringing a freshly opened ledger into service.
type step struct {
	name string
	run  func(context.Context) error
}

// prepare runs steps in order and stops at the first failure.
func prepare(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Connect opens the ledger, creates its table when missing and checks the
// table's shape before returning it with a function that releases it.
//
// With Type "none" the ledger is disabled: Connect returns a nil Repo and a
// no-op release function.
func Connect(ctx context.Context, cfg Config) (Repo, func(), error) {
	if cfg.Type == TypeNone {
		return nil, func() {}, nil
	}
	if err := cfg.Tables.Validate(); err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	var (
		repo    Repo
		release func()
		err     error
	)
	switch cfg.Type {
	case TypeSQLite:
		repo, release, err = openSQLite(ctx, cfg)
	case TypePostgres:
		repo, release, err = openPostgres(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s ledger: %w", cfg.Type, err)
	}
	return repo, release, nil
}

func openSQLite(ctx context.Context, cfg Config) (Repo, func(), error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	// One writer at a time, and every :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	release := func() { _ = db.Close() }

	err = prepare(ctx,
		step{"ping", db.PingContext},
		step{"migrate", func(ctx context.Context) error { return sqlite.Migrate(ctx, db, cfg.Tables) }},
		step{"check schema", func(ctx context.Context) error { return sqlite.ValidateSchema(ctx, db, cfg.Tables) }},
	)
	if err != nil {
		release()
		return nil, nil, err
	}

	repo, err := sqlite.NewRepo(db, cfg.Tables)
	if err != nil {
		release()
		return nil, nil, err
	}
	return repo, release, nil
}

func openPostgres(ctx context.Context, cfg Config) (Repo, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	err = prepare(ctx,
		step{"ping", pool.Ping},
		step{"migrate", func(ctx context.Context) error { return postgres.Migrate(ctx, pool, cfg.Tables) }},
		step{"check schema", func(ctx context.Context) error { return postgres.ValidateSchema(ctx, pool, cfg.Tables) }},
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	repo, err := postgres.NewRepo(pool, cfg.Tables)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
