package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nosdav/nosdav"
)

// RequestVerifier authenticates a request and returns the signer's identity.
// *nosdav.CredentialVerifier implements it.
type RequestVerifier interface {
	VerifyRequest(r *http.Request) (nosdav.Identity, error)
}

// AuthMiddleware verifies the Authorization header and stores the identity in
// the request context. A nil verifier rejects every request, so writes are
// never accidentally public.
func AuthMiddleware(verifier RequestVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				HandleError(w, nosdav.ErrUnauthorized)
				return
			}

			identity, err := verifier.VerifyRequest(r)
			if err != nil {
				HandleError(w, err)
				return
			}

			slog.Debug("request authorized", "identity", identity.Short(), "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))
		})
	}
}

// CORSMiddleware sets the CORS headers on every response, including errors
// and requests without an Origin header.
//
// Access-Control-Allow-Origin carries a single value: "*" when the wildcard
// is allowed, the only configured origin when there is one, and otherwise the
// request Origin if it is listed. An unlisted origin gets no allow header.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case len(cfg.AllowedOrigins) == 1:
				h.Set("Access-Control-Allow-Origin", cfg.AllowedOrigins[0])
				h.Add("Vary", "Origin")
			default:
				if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(cfg.AllowedOrigins, origin) {
					h.Set("Access-Control-Allow-Origin", origin)
				}
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through slog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
