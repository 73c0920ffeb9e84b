package main

import (
	"os"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signing identity and where uploads go",
	Long: `Show the public key uploads are signed with and the URL they land under.

In multiuser mode the upload root is /<public-key>/ on the server. In
singleuser mode the public key must be one of the server owners.

Examples:
  nosdav-cli whoami
  nosdav-cli whoami -q          # public key only
  nosdav-cli whoami -P work --json`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func runWhoami(_ *cobra.Command, _ []string) error {
	cfg, name, err := resolveConfig()
	if err != nil {
		return handleError(os.Stderr, err)
	}

	id, err := cfg.Identity()
	if err != nil {
		return handleError(os.Stderr, err)
	}
	id.Profile = name

	return getFormatter().FormatIdentity(os.Stdout, id)
}
