package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the storage directory and migrate the upload ledger",
	Long: `Create the storage directory if it does not exist and run the upload
ledger migrations. Safe to run more than once.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	root, _, err := openStorage(cfg)
	if err != nil {
		return err
	}
	_ = root.Close()

	_, closeDB, err := connectLedger(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	closeDB()

	slog.Info("initialization complete", "storage", cfg.Storage.Path, "database", cfg.Database.Type)
	return nil
}
