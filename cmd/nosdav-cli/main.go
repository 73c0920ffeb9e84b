package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nosdav/nosdav/clientcli"
)

var (
	version = "dev"

	cfgFile     string
	profileName string
	endpoint    string
	secretKey   string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "nosdav-cli",
	Version: version,
	Short:   "Client for nosdav file servers",
	Long: `nosdav-cli - client for nosdav file servers

Uploads are signed with a Nostr key (kind 27235 HTTP auth events). Downloads
are public and need no key.

Server modes:
  - singleuser: your public key must be one of the server owners
  - multiuser:  files go under /<your-public-key>/; configure --multiuser
                or upload --namespaced

Start with "nosdav-cli configure" to create a key and save the server.

Key and endpoint resolution (later wins):
  config file profile -> NOSDAV_ENDPOINT / NOSDAV_SECRET_KEY -> flags`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.nosdav/config.yaml, env: NOSDAV_CONFIG)")
	pf.StringVarP(&profileName, "profile", "P", "", "profile name (env: NOSDAV_PROFILE)")
	pf.StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: "+clientcli.DefaultEndpoint+", env: NOSDAV_ENDPOINT)")
	pf.StringVarP(&secretKey, "secret-key", "k", "", "hex secret key (env: NOSDAV_SECRET_KEY)")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getConfigPath returns the config file path from flag, env, or the default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// resolveConfig merges config from the profile, env vars, and flags (flags
// take precedence). It also returns the name of the profile used, if any.
func resolveConfig() (*clientcli.Config, string, error) {
	var configs []*clientcli.Config
	var used string

	explicit := cfgFile != "" || clientcli.ConfigPathFromEnv() != ""
	name := profileName
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	if configPath := getConfigPath(); configPath != "" {
		file, err := clientcli.LoadConfigFile(configPath)
		switch {
		case err == nil:
			p, profileErr := file.Lookup(name)
			if profileErr != nil && (name != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
				return nil, "", profileErr
			}
			if p != nil {
				used = p.Name
			}
			configs = append(configs, clientcli.ConfigFromProfile(p))
		case explicit || name != "":
			return nil, "", err
		}
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: endpoint, SecretKey: secretKey},
	)

	return clientcli.MergeConfig(configs...), used, nil
}

// buildConfig is resolveConfig without the profile name.
func buildConfig() (*clientcli.Config, error) {
	cfg, _, err := resolveConfig()
	return cfg, err
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg)
}

// commandContext returns the command's context, or Background when cobra
// was run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// handleError prints err with the active formatter and returns it so the
// command exits non-zero.
func handleError(w io.Writer, err error) error {
	if fmtErr := getFormatter().FormatError(w, err); fmtErr != nil {
		return fmt.Errorf("%w (format error: %w)", err, fmtErr)
	}
	return err
}
