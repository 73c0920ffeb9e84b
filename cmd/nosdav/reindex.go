package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/config"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the upload ledger from storage files",
	Long: `Scan the storage directory and record every file in the upload ledger.
This is useful when:
  - Setting up nosdav with existing files
  - Recovering the ledger after database loss
  - Switching database backends`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	repo, closeDB, err := connectLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if repo == nil {
		return errors.New("reindex needs an upload ledger, database.type is none")
	}

	root, storage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	service, err := newService(cfg, storage, repo)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	slog.Info("scanning storage directory", "path", cfg.Storage.Path)

	count, err := service.Populate(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	counts, err := repo.CountByOwner(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	for owner, n := range counts {
		name := owner.Short()
		if owner == "" {
			name = "(none)"
		}
		slog.Info("owner files", "owner", name, "files", n)
	}

	slog.Info("reindex complete", "files_indexed", count)
	return nil
}
