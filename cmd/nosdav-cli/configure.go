package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nosdav/nosdav/clientcli"
)

const defaultProfileName = "default"

var (
	configureGenerate    bool
	configureMultiuser   bool
	configureNoVerify    bool
	configureNoPrompt    bool
	configurePingTimeout = 5 * time.Second
)

var configureCmd = &cobra.Command{
	Use:   "configure [profile]",
	Short: "Set up a signing key and server for uploads",
	Long: `Bind a signing key to a nosdav server and make it the current profile.

Values not given as flags are prompted for when stdin is a terminal; leaving
the secret key empty generates a new one. Without a terminal, or with
--no-prompt, missing values keep their current or default setting and a key
is generated if none exists. Before saving, the endpoint must answer an OPTIONS
preflight that allows PUT.

Running configure again for an existing profile updates it in place.

Examples:
  nosdav-cli configure
  nosdav-cli configure work -e https://files.example.com --multiuser --generate
  nosdav-cli configure ci --no-prompt -k "$NOSTR_SK" -e http://localhost:3118`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigure,
}

func init() {
	f := configureCmd.Flags()
	f.BoolVar(&configureGenerate, "generate", false, "generate a new secret key instead of prompting")
	f.BoolVar(&configureMultiuser, "multiuser", false, "server keeps each identity under /<pubkey>/")
	f.BoolVar(&configureNoVerify, "no-verify", false, "save without checking the endpoint")
	f.BoolVar(&configureNoPrompt, "no-prompt", false, "never prompt; use flags, current values and defaults")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	name := defaultProfileName
	if len(args) > 0 {
		name = args[0]
	}

	path := getConfigPath()
	if path == "" {
		return handleError(os.Stderr, errors.New("cannot determine config path; use --config"))
	}

	file, err := clientcli.LoadOrCreateConfigFile(path)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	profile := clientcli.Profile{Name: name, Endpoint: clientcli.DefaultEndpoint}
	if existing, lookupErr := file.Lookup(name); lookupErr == nil {
		profile = *existing
	}

	generated, err := fillProfile(cmd, &profile)
	if err != nil {
		return handlePromptError(err)
	}

	client, err := clientcli.New(clientcli.ConfigFromProfile(&profile))
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if !configureNoVerify {
		ctx, cancel := context.WithTimeout(commandContext(cmd), configurePingTimeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return handleError(os.Stderr, fmt.Errorf("verify endpoint (use --no-verify to skip): %w", err))
		}
	}

	id, err := clientcli.ConfigFromProfile(&profile).Identity()
	if err != nil {
		return handleError(os.Stderr, err)
	}
	id.Profile = profile.Name

	file.Set(profile)
	if err := file.Save(path); err != nil {
		return handleError(os.Stderr, err)
	}

	if generated && !quiet && !jsonOutput {
		fmt.Fprintf(os.Stderr, "Generated a new secret key; it is stored in %s\n", path)
	}
	return getFormatter().FormatIdentity(os.Stdout, id)
}

// fillProfile applies flags to p and prompts for whatever is still missing.
// It reports whether a new key was generated.
func fillProfile(cmd *cobra.Command, p *clientcli.Profile) (bool, error) {
	if endpoint != "" {
		p.Endpoint = endpoint
	}
	if secretKey != "" {
		p.SecretKey = secretKey
	}
	if cmd.Flags().Changed("multiuser") {
		p.Multiuser = configureMultiuser
	}

	interactive := !configureNoPrompt && term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int

	if interactive && endpoint == "" {
		v, err := (&promptui.Prompt{
			Label:    "Endpoint",
			Default:  p.Endpoint,
			Validate: validateEndpoint,
		}).Run()
		if err != nil {
			return false, err
		}
		p.Endpoint = v
	} else if err := validateEndpoint(p.Endpoint); err != nil {
		return false, err
	}

	if interactive && secretKey == "" && !configureGenerate {
		label := "Secret key (hex, empty to generate)"
		if p.SecretKey != "" {
			label = "Secret key (hex, empty to keep current)"
		}
		v, err := (&promptui.Prompt{
			Label:    label,
			Mask:     '*',
			Validate: validateSecretKey,
		}).Run()
		if err != nil {
			return false, err
		}
		if v != "" {
			p.SecretKey = v
		}
	}

	if interactive && !cmd.Flags().Changed("multiuser") {
		_, err := (&promptui.Prompt{
			Label:     "Does the server run in multiuser mode",
			IsConfirm: true,
		}).Run()
		switch {
		case err == nil:
			p.Multiuser = true
		case errors.Is(err, promptui.ErrAbort):
			p.Multiuser = false
		default:
			return false, err
		}
	}

	if configureGenerate || p.SecretKey == "" {
		kp, err := clientcli.GenerateKeyPair()
		if err != nil {
			return false, err
		}
		p.SecretKey = kp.SecretKey
		return true, nil
	}

	return false, validateSecretKey(p.SecretKey)
}

func validateEndpoint(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("endpoint must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("endpoint must include a host")
	}
	return nil
}

func validateSecretKey(s string) error {
	if s == "" {
		return nil
	}
	return (&clientcli.Config{SecretKey: s}).ValidateWithAuth()
}

// handlePromptError treats Ctrl-C and an aborted prompt as a clean cancel.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		fmt.Fprintln(os.Stderr, "Cancelled.")
		return nil
	}
	return handleError(os.Stderr, err)
}
