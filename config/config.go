package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nosdav/nosdav/database"
	nosdavhttp "github.com/nosdav/nosdav/http"
	"github.com/nosdav/nosdav/owners"
)

// ErrNotInContext is returned by FromContext before Load has run.
var ErrNotInContext = errors.New("config not loaded")

type ctxKey struct{}

// WithContext attaches cfg to ctx for subcommands.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config attached by WithContext.
func FromContext(ctx context.Context) (*Config, error) {
	if cfg, _ := ctx.Value(ctxKey{}).(*Config); cfg != nil {
		return cfg, nil
	}
	return nil, ErrNotInContext
}

// Config is the root configuration struct for nosdav.
type Config struct {
	Env      string                `mapstructure:"env"`
	Server   ServerConfig          `mapstructure:"server"`
	Storage  StorageConfig         `mapstructure:"storage"`
	Owners   owners.Config         `mapstructure:"owners"`
	Auth     AuthConfig            `mapstructure:"auth"`
	Database database.Config       `mapstructure:"database"`
	Service  ServiceConfig         `mapstructure:"service"`
	CORS     nosdavhttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig         `mapstructure:"metrics"`
	Log      LogConfig             `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host          string    `mapstructure:"host"`
	Port          int       `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64     `mapstructure:"max_upload_size" validate:"min=0"`
	TLS           TLSConfig `mapstructure:"tls"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TLSConfig holds the certificate used when serving HTTPS.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `mapstructure:"key_file" validate:"required_if=Enabled true"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	Mode string `mapstructure:"mode" validate:"required,oneof=singleuser multiuser"`
}

// AuthConfig holds credential verification configuration.
type AuthConfig struct {
	HTTPBinding bool `mapstructure:"http_binding"`
	MaxSkew     int  `mapstructure:"max_skew" validate:"min=1"` // seconds
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"` // seconds
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate checks struct constraints, then the ledger table names unless the
// ledger is disabled.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Database.Type == database.TypeNone {
		return nil
	}
	return c.Database.Tables.Validate()
}

// flagKeys names the config key behind each server flag whose name differs
// from its key.
var flagKeys = map[string]string{
	"port":         "server.port",
	"host":         "server.host",
	"https":        "server.tls.enabled",
	"key":          "server.tls.key_file",
	"cert":         "server.tls.cert_file",
	"max-upload":   "server.max_upload_size",
	"root":         "storage.path",
	"mode":         "storage.mode",
	"owners":       "owners.inline",
	"owners-file":  "owners.file",
	"http-binding": "auth.http_binding",
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"metrics":      "metrics.enabled",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
}

// defaults holds every key a deployment can leave out. Plain HTTP on 3118 is
// the default; TLS is opt-in with --https or server.tls.enabled.
var defaults = map[string]any{
	"env": "development",

	"server.host":            "",
	"server.port":            3118,
	"server.max_upload_size": 0, // unlimited
	"server.tls.enabled":     false,
	"server.tls.cert_file":   "./fullchain.pem",
	"server.tls.key_file":    "./privkey.pem",

	"storage.path": "data",
	"storage.mode": "multiuser",

	"owners.inline": []string{},
	"owners.file":   "",

	"auth.http_binding": false,
	"auth.max_skew":     60,

	"database.type":           "sqlite",
	"database.dsn":            "nosdav.db",
	"database.tables.uploads": "nosdav_uploads",

	"service.cleanup_timeout": 30,

	"cors.allowed_origins": []string{"*"},
	"cors.allowed_methods": []string{"GET", "PUT", "OPTIONS"},
	"cors.allowed_headers": []string{"Content-Type", "Authorization"},
	"cors.max_age":         0,

	"metrics.enabled": false,
	"metrics.addr":    ":9118",

	"log.level": "info",
}

// Load resolves the server configuration from, lowest to highest priority:
// defaults, config files (later files win), NOSDAV_* environment variables
// and flags the user actually set. flags may be nil.
//
// With no files, ./config.yaml is read when it exists. Files named
// explicitly must be readable.
func Load(files []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := readFiles(v, files); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("NOSDAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindChangedFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func readFiles(v *viper.Viper, files []string) error {
	if len(files) == 0 {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return fmt.Errorf("read ./config.yaml: %w", err)
		}
		if err == nil {
			slog.Debug("loaded config file", "file", v.ConfigFileUsed())
		}
		return nil
	}

	for i, file := range files {
		v.SetConfigFile(file)
		read := v.MergeInConfig
		if i == 0 {
			read = v.ReadInConfig
		}
		if err := read(); err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
	}
	return nil
}

// bindChangedFlags binds only flags set on the command line so that flag
// defaults never shadow config files or the environment.
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}
		err = errors.Join(err, v.BindPFlag(key, f))
	})
	return err
}
