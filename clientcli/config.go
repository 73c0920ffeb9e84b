package clientcli

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nosdav/nosdav/eventsig"
)

// DefaultEndpoint is where a nosdav server listens when run without flags.
const DefaultEndpoint = "http://localhost:3118"

// Environment variables read by the CLI.
const (
	EnvEndpoint  = "NOSDAV_ENDPOINT"
	EnvSecretKey = "NOSDAV_SECRET_KEY"
	EnvMultiuser = "NOSDAV_MULTIUSER"
	EnvProfile   = "NOSDAV_PROFILE"
	EnvConfig    = "NOSDAV_CONFIG"
)

// Profile binds a signing key to one server.
//
// Multiuser records that the server keeps each identity under /<pubkey>/,
// so uploads through this profile are namespaced without a flag.
type Profile struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Multiuser bool   `yaml:"multiuser,omitempty"`
}

// ConfigFile is the on-disk list of profiles and the one in use.
type ConfigFile struct {
	Current  string    `yaml:"current,omitempty"`
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) index(name string) int {
	return slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Name == name })
}

// Lookup returns the named profile. An empty name selects the current
// profile, or the first one when none is current.
func (c *ConfigFile) Lookup(name string) (*Profile, error) {
	switch {
	case len(c.Profiles) == 0:
		return nil, ErrNoProfiles
	case name == "" && c.Current == "":
		return &c.Profiles[0], nil
	case name == "":
		name = c.Current
	}
	i := c.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

// Set stores p, replacing any profile with the same name, and makes it current.
func (c *ConfigFile) Set(p Profile) {
	c.Current = p.Name
	if i := c.index(p.Name); i >= 0 {
		c.Profiles[i] = p
		return
	}
	c.Profiles = append(c.Profiles, p)
}

// Save replaces the file at path atomically, readable by the owner only
// since it holds secret keys. The parent directory is created if needed.
func (c *ConfigFile) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	defer os.Remove(tmp.Name())

	// CreateTemp already uses 0600; Chmod keeps that true under any umask.
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save profiles: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	return nil
}

// LoadConfigFile reads the profiles stored at path.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("load profiles: %s: %w", path, err)
	}
	return &file, nil
}

// LoadOrCreateConfigFile is LoadConfigFile, except that a missing file
// yields an empty config to be filled in and saved.
func LoadOrCreateConfigFile(path string) (*ConfigFile, error) {
	cfg, err := LoadConfigFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ConfigFile{}, nil
	}
	return cfg, err
}

// DefaultConfigPath is ~/.nosdav/config.yaml, or "" without a home directory.
func DefaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".nosdav", "config.yaml")
	}
	return ""
}

// Config is what a client needs to talk to one server.
type Config struct {
	Endpoint  string
	SecretKey string
	Multiuser bool
}

// WithDefaults returns a copy with an empty Endpoint set to DefaultEndpoint.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	cfg.Endpoint = cmp.Or(cfg.Endpoint, DefaultEndpoint)
	return &cfg
}

// ValidateWithAuth checks that a usable secret key is set.
func (c *Config) ValidateWithAuth() error {
	_, err := c.PublicKey()
	return err
}

// PublicKey returns the identity the server will see for this config.
func (c *Config) PublicKey() (string, error) {
	if c.SecretKey == "" {
		return "", ErrSecretKeyRequired
	}
	pk, err := eventsig.PublicKey(c.SecretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSecretKey, err)
	}
	return pk, nil
}

// Identity describes who this config signs as and where its uploads land.
func (c *Config) Identity() (Identity, error) {
	pk, err := c.PublicKey()
	if err != nil {
		return Identity{}, err
	}

	cfg := c.WithDefaults()
	root := strings.TrimSuffix(cfg.Endpoint, "/") + "/"
	if cfg.Multiuser {
		root += pk + "/"
	}

	return Identity{
		Endpoint:   cfg.Endpoint,
		PublicKey:  pk,
		Multiuser:  cfg.Multiuser,
		UploadRoot: root,
	}, nil
}

// ConfigFromProfile returns the client settings a profile stores. A nil
// profile yields an empty Config.
func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{Endpoint: p.Endpoint, SecretKey: p.SecretKey, Multiuser: p.Multiuser}
}

// ConfigFromEnv reads EnvEndpoint, EnvSecretKey and EnvMultiuser. An
// unparsable EnvMultiuser counts as unset.
func ConfigFromEnv() *Config {
	multiuser, _ := strconv.ParseBool(os.Getenv(EnvMultiuser))
	return &Config{
		Endpoint:  os.Getenv(EnvEndpoint),
		SecretKey: os.Getenv(EnvSecretKey),
		Multiuser: multiuser,
	}
}

// ProfileFromEnv returns the profile named by EnvProfile.
func ProfileFromEnv() string { return os.Getenv(EnvProfile) }

// ConfigPathFromEnv returns the config file named by EnvConfig.
func ConfigPathFromEnv() string { return os.Getenv(EnvConfig) }

// MergeConfig layers configs left to right. A later non-empty string wins;
// Multiuser is set once any config sets it.
func MergeConfig(configs ...*Config) *Config {
	out := &Config{}
	for _, c := range configs {
		if c == nil {
			continue
		}
		out.Endpoint = cmp.Or(c.Endpoint, out.Endpoint)
		out.SecretKey = cmp.Or(c.SecretKey, out.SecretKey)
		out.Multiuser = out.Multiuser || c.Multiuser
	}
	return out
}
