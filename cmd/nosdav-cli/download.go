package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/clientcli"
)

var downloadCmd = &cobra.Command{
	Use:   "download <remote-path> [local-path | -]",
	Short: "Fetch a stored file",
	Long: `Fetch a stored file. Reads are public, so no key is needed.

The file is saved under its base name unless local-path is given; "-"
writes it to stdout. A failed transfer leaves no partial file behind.

Examples:
  nosdav-cli download <pubkey>/notes.txt
  nosdav-cli download <pubkey>/profile.json ./profile.json
  nosdav-cli download <pubkey>/profile.json - | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	opts := clientcli.DownloadOptions{RemotePath: args[0]}
	if len(args) == 2 {
		opts.LocalPath = args[1]
	}

	client, err := getClient()
	if err != nil {
		return handleError(os.Stderr, err)
	}

	result, body, err := client.Download(commandContext(cmd), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}
	if body == nil {
		return getFormatter().FormatDownload(os.Stdout, result)
	}

	// Streaming: stdout carries the file, so any report goes to stderr.
	defer body.Close()
	if _, err := io.Copy(os.Stdout, body); err != nil {
		return handleError(os.Stderr, err)
	}
	if jsonOutput {
		return getFormatter().FormatDownload(os.Stderr, result)
	}
	return nil
}
