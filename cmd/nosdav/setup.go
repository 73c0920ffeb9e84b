package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/config"
	"github.com/nosdav/nosdav/database"
	"github.com/nosdav/nosdav/filesystem"
	"github.com/nosdav/nosdav/owners"
)

// openStorage creates the storage directory if needed and opens it as an
// os.Root. The caller closes the root.
func openStorage(cfg *config.Config) (*os.Root, *filesystem.Store, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage root: %w", err)
	}

	return root, filesystem.NewStore(root), nil
}

// connectLedger connects the upload ledger. The returned repo is nil when the
// ledger is disabled.
func connectLedger(ctx context.Context, cfg *config.Config) (database.Repo, func(), error) {
	repo, cleanup, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if repo == nil {
		slog.Info("upload ledger disabled")
	} else {
		slog.Info("connected to database", "type", cfg.Database.Type)
	}

	return repo, cleanup, nil
}

func newService(cfg *config.Config, storage nosdav.FileStorage, repo database.Repo) (*nosdav.Service, error) {
	mode, err := nosdav.ParseStorageMode(cfg.Storage.Mode)
	if err != nil {
		return nil, err
	}

	ownerSet, err := owners.NewOwnerSet(cfg.Owners)
	if err != nil {
		return nil, err
	}

	var ledger nosdav.UploadRepo
	if repo != nil {
		ledger = repo
	}

	return nosdav.NewService(storage, ledger, nosdav.ServiceConfig{
		Mode:           mode,
		Owners:         ownerSet,
		RootDir:        cfg.Storage.Path,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
}
