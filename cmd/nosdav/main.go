package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "nosdav",
	Short:   "Blob storage server with Nostr authentication",
	Long: `nosdav stores files uploaded with HTTP PUT and serves them with GET.
Uploads are authorized by a signed Nostr event in the Authorization header.

In multiuser mode every pubkey writes to its own directory. In singleuser
mode only the configured owners may write, anywhere under the root.

Running nosdav without a subcommand starts the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringArray("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
	RunE: runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringArray("config", nil, "config file path, repeatable (default: ./config.yaml)")
	pf.StringP("root", "r", "data", "storage directory (env: NOSDAV_STORAGE_PATH)")
	pf.StringP("mode", "m", "multiuser", "storage mode: singleuser, multiuser (env: NOSDAV_STORAGE_MODE)")
	pf.StringSliceP("owners", "o", nil, "comma separated owner pubkeys for singleuser mode")
	pf.String("owners-file", "", "JSON file with owner pubkeys")
	pf.String("db-type", "sqlite", "upload ledger: sqlite, postgres, none (env: NOSDAV_DATABASE_TYPE)")
	pf.String("db-dsn", "nosdav.db", "upload ledger connection string (env: NOSDAV_DATABASE_DSN)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")

	addServeFlags(pf)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
