package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/clientcli"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signing key",
	Long: `Generate a new secp256k1 key pair.

The public key is your identity on a nosdav server: give it to the server
owner for singleuser mode, or use it as your directory name in multiuser mode.

Examples:
  nosdav-cli keygen
  nosdav-cli keygen -q > ~/.nosdav/key`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func runKeygen(_ *cobra.Command, _ []string) error {
	kp, err := clientcli.GenerateKeyPair()
	if err != nil {
		return handleError(os.Stderr, err)
	}
	return getFormatter().FormatKeyPair(os.Stdout, kp)
}
