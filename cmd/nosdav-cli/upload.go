package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/clientcli"
)

var uploadOpts clientcli.UploadOptions

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-path]",
	Short: "Store files on the server",
	Long: `Store files on the server, signing each PUT with your key.

Without remote-path the file keeps its local relative path. On a multiuser
profile, or with --namespaced, remote paths are placed under your public
key; such a path must be a single file name.

A recursive upload sends every regular file under the directory and reports
each one. The command fails if any file failed.

Examples:
  nosdav-cli upload ./notes.txt
  nosdav-cli upload --namespaced ./profile.json profile.json
  nosdav-cli upload -r ./site/ site/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	f := uploadCmd.Flags()
	f.BoolVarP(&uploadOpts.Recursive, "recursive", "r", false, "upload every file under a directory")
	f.StringVarP(&uploadOpts.ContentType, "content-type", "t", "", "send this content type instead of sniffing it")
	f.BoolVarP(&uploadOpts.Namespaced, "namespaced", "n", false, "place the file under your public key")
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts := uploadOpts
	opts.LocalPath = args[0]
	opts.RemotePath = clientcli.NormalizeLocalToRemotePath(args[0])
	if len(args) == 2 {
		opts.RemotePath = args[1]
	}

	client, err := getClient()
	if err != nil {
		return handleError(os.Stderr, err)
	}

	results, err := client.Upload(commandContext(cmd), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}
	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Err)
		}
	}
	return errors.Join(failed...)
}
