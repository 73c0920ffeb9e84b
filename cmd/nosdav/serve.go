package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/config"
	"github.com/nosdav/nosdav/eventsig"
	nosdavhttp "github.com/nosdav/nosdav/http"
	"github.com/nosdav/nosdav/observability"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the nosdav HTTP server.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.IntP("port", "p", 3118, "HTTP server port (env: NOSDAV_SERVER_PORT)")
	fs.String("host", "", "listen host")
	fs.BoolP("https", "s", false, "serve HTTPS")
	fs.StringP("key", "k", "./privkey.pem", "TLS private key file")
	fs.StringP("cert", "c", "./fullchain.pem", "TLS certificate file")
	fs.Int64("max-upload", 0, "maximum upload size in bytes, 0 for unlimited")
	fs.Bool("http-binding", false, "require auth events bound to the request method and URL")
	fs.Bool("metrics", false, "serve Prometheus metrics")
	fs.String("metrics-addr", ":9118", "metrics listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeDB, err := connectLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	root, storage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	service, err := newService(cfg, storage, repo)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	var verifierOpts []nosdav.VerifierOption
	if cfg.Auth.HTTPBinding {
		verifierOpts = append(verifierOpts, nosdav.WithRequestBinding(time.Duration(cfg.Auth.MaxSkew)*time.Second))
	}
	verifier := nosdav.NewCredentialVerifier(eventsig.NewVerifier(), verifierOpts...)

	handler := nosdavhttp.NewHandler(&nosdavhttp.HandlerConfig{
		Verifier:      verifier,
		CORS:          cfg.CORS,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}, service)

	var router http.Handler = handler.Router()
	if cfg.Metrics.Enabled {
		router = observability.MetricsMiddleware(router)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           observability.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		defer shutdown(metricsServer, "metrics")

		go func() {
			slog.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	go func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"mode", service.Mode(),
			"root", cfg.Storage.Path,
			"tls", cfg.Server.TLS.Enabled,
			"http_binding", cfg.Auth.HTTPBinding,
		)

		var err error
		if cfg.Server.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		shutdown(server, "http")
		return err
	case <-ctx.Done():
		slog.Info("shutting down server...")
		shutdown(server, "http")
		return nil
	}
}

func shutdown(server *http.Server, name string) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "server", name, "err", err)
	}
}
