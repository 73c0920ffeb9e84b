package e2e_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gopkg.in/yaml.v3"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string

	ledgerOnce      sync.Once
	ledgerContainer *pgcontainer.PostgresContainer
	ledgerPool      *pgxpool.Pool
	ledgerDSN       string
	ledgerErr       error
)

// TestMain owns the build directory and the shared postgres container.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "nosdav-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	stopLedgerDatabase()
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// ledgerDatabase returns the DSN of a postgres database for the upload ledger
// and a pool to inspect it. The container starts on first use and TestMain
// terminates it.
func ledgerDatabase(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres e2e test in short mode")
	}
	ledgerOnce.Do(func() {
		ledgerErr = startLedgerDatabase(context.Background())
	})
	require.NoError(t, ledgerErr, "start postgres")
	return ledgerDSN, ledgerPool
}

func startLedgerDatabase(ctx context.Context) error {
	container, err := pgcontainer.Run(ctx,
		"postgres:18-alpine",
		pgcontainer.WithDatabase("nosdav"),
		pgcontainer.WithUsername("nosdav"),
		pgcontainer.WithPassword("nosdav"),
		pgcontainer.BasicWaitStrategies(),
	)
	ledgerContainer = container
	if err != nil {
		return fmt.Errorf("run container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	ledgerPool = pool
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	ledgerDSN = dsn
	return nil
}

func stopLedgerDatabase() {
	if ledgerPool != nil {
		ledgerPool.Close()
	}
	if ledgerContainer != nil {
		if err := testcontainers.TerminateContainer(ledgerContainer); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}
}

// ServerConfig describes one nosdav process under test. A zero Port picks a
// free one.
type ServerConfig struct {
	Port          int
	Mode          string // singleuser, multiuser
	Owners        []string
	DBType        string // sqlite, postgres, none
	DBDSN         string
	StoragePath   string
	HTTPBinding   bool
	MaxUploadSize int64
	MetricsPort   int // 0 disables the metrics listener
}

// serverFile mirrors the keys of the server's config.yaml that e2e runs set.
type serverFile struct {
	Server struct {
		Port          int   `yaml:"port"`
		MaxUploadSize int64 `yaml:"max_upload_size"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
		Mode string `yaml:"mode"`
	} `yaml:"storage"`
	Owners struct {
		Inline []string `yaml:"inline,omitempty"`
	} `yaml:"owners"`
	Database struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		HTTPBinding bool `yaml:"http_binding"`
	} `yaml:"auth"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr,omitempty"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func (c ServerConfig) file() serverFile {
	var f serverFile
	f.Server.Port = c.Port
	f.Server.MaxUploadSize = c.MaxUploadSize
	f.Storage.Path = c.StoragePath
	f.Storage.Mode = c.Mode
	f.Owners.Inline = c.Owners
	f.Database.Type = c.DBType
	f.Database.DSN = c.DBDSN
	f.Auth.HTTPBinding = c.HTTPBinding
	if c.MetricsPort > 0 {
		f.Metrics.Enabled = true
		f.Metrics.Addr = fmt.Sprintf("127.0.0.1:%d", c.MetricsPort)
	}
	f.Log.Level = "error"
	return f
}

// nosdavBinary builds ./cmd/nosdav once per run and returns its path.
func nosdavBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "nosdav")
		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/nosdav")
		cmd.Dir = moduleRoot(t)
		if out, err := cmd.CombinedOutput(); err != nil {
			binaryBuildErr = fmt.Errorf("go build: %w\n%s", err, out)
		}
	})
	require.NoError(t, binaryBuildErr)
	return binaryPath
}

// moduleRoot walks up from the working directory to the nearest go.mod.
func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		up := filepath.Dir(dir)
		require.NotEqual(t, dir, up, "no go.mod above the test directory")
		dir = up
	}
}

// writeServerConfig renders cfg as the server's YAML config file.
func writeServerConfig(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	data, err := yaml.Marshal(cfg.file())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// startServer runs "nosdav init" then "nosdav serve" with cfg and returns
// the base URL once the server answers. The process gets SIGTERM when the
// test ends.
func startServer(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	if cfg.Port == 0 {
		cfg.Port = freePort(t)
	}
	binary := nosdavBinary(t)
	configPath := writeServerConfig(t, cfg)

	out, err := exec.Command(binary, "init", "--config", configPath).CombinedOutput()
	require.NoError(t, err, "nosdav init: %s", out)

	cmd := exec.Command(binary, "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		_ = cmd.Wait()
	})

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	awaitPreflight(t, baseURL, 10*time.Second)
	return baseURL
}

// awaitPreflight retries an OPTIONS request until the server answers.
func awaitPreflight(t *testing.T, baseURL string, within time.Duration) {
	t.Helper()

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodOptions, baseURL+"/", http.NoBody)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, within, 100*time.Millisecond, "server at %s never came up", baseURL)
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
