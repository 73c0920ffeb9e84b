package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/observability"
)

type Service interface {
	Get(ctx context.Context, path string) (nosdav.Object, io.ReadSeekCloser, error)
	Put(ctx context.Context, identity nosdav.Identity, path string, content io.Reader) (nosdav.Upload, error)
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age" validate:"gte=0"`
}

// DefaultCORSConfig returns the permissive policy browsers need to upload
// from any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

type HandlerConfig struct {
	Verifier      RequestVerifier
	CORS          CORSConfig
	MaxUploadSize int64 // bytes, 0 = unlimited
}

// Handler provides HTTP handlers for blob storage operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = DefaultCORSConfig().AllowedOrigins
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = DefaultCORSConfig().AllowedMethods
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = DefaultCORSConfig().AllowedHeaders
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler serving OPTIONS, GET and PUT on every path.
// Writes require a verified identity; reads are public.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(CORSMiddleware(h.config.CORS))
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger, middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})

	r.Options("/*", h.handleOptions)
	r.Get("/*", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Verifier))
		r.Put("/*", h.handlePut)
	})

	return r
}

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	obj, content, err := h.service.Get(r.Context(), r.URL.Path)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = content.Close() }()

	if obj.ETag != "" {
		w.Header().Set("ETag", `"`+obj.ETag+`"`)
	}
	w.Header().Set("Content-Type", obj.ContentType)

	http.ServeContent(w, r, obj.Path, obj.ModTime, content)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		HandleError(w, fmt.Errorf("%w: %w", nosdav.ErrUnauthorized, errNoIdentity))
		return
	}

	body := io.Reader(r.Body)
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	upload, err := h.service.Put(r.Context(), identity, r.URL.Path, body)
	if err != nil {
		HandleError(w, err)
		return
	}

	observability.UploadBytesTotal.Add(float64(upload.SizeBytes))

	if upload.ETag != "" {
		w.Header().Set("ETag", `"`+upload.ETag+`"`)
	}
	WriteText(w, http.StatusCreated, MsgFileCreated)
}
