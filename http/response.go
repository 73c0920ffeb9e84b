package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/observability"
)

// Response bodies. Clients match on these strings, so they are part of the API.
const (
	MsgFileCreated      = "File created"
	MsgUnauthorized     = "Unauthorized: invalid Nostr authorization"
	MsgWrongOwner       = "Forbidden: wrong owner"
	MsgWrongPubkey      = "Forbidden: wrong pubkey"
	MsgInvalidTarget    = "Forbidden: invalid target directory structure"
	MsgPathEscape       = "Forbidden: target path outside allowed directory"
	MsgDirectoryCreate  = "Error creating directory"
	MsgStreamWrite      = "Error writing file"
	MsgTooLarge         = "File too large"
	MsgNotFound         = "File not found"
	MsgMethodNotAllowed = "Method not allowed"
	MsgInternal         = "Internal server error"
)

// WriteText writes a plain text response.
func WriteText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if _, err := io.WriteString(w, message); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}

// WriteError writes a plain text error response.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Del("ETag")
	WriteText(w, code, message)
}

// errorMapping pairs a sentinel with its response. Order matters: the
// first match wins, so specific errors come before the ones they wrap.
var errorMapping = []struct {
	target  error
	code    int
	message string
	reason  string
}{
	{nosdav.ErrUnauthorized, http.StatusUnauthorized, MsgUnauthorized, "unauthorized"},
	{nosdav.ErrOwnershipMismatch, http.StatusForbidden, MsgWrongOwner, "wrong_owner"},
	{nosdav.ErrNamespaceMismatch, http.StatusForbidden, MsgWrongPubkey, "wrong_pubkey"},
	{nosdav.ErrInvalidTargetDir, http.StatusForbidden, MsgInvalidTarget, "invalid_target"},
	{nosdav.ErrPathEscape, http.StatusForbidden, MsgPathEscape, "path_escape"},
	{nosdav.ErrTooLarge, http.StatusRequestEntityTooLarge, MsgTooLarge, "too_large"},
	{nosdav.ErrDirectoryCreate, http.StatusInternalServerError, MsgDirectoryCreate, ""},
	{nosdav.ErrStreamWrite, http.StatusInternalServerError, MsgStreamWrite, ""},
	{nosdav.ErrNotFound, http.StatusNotFound, MsgNotFound, "not_found"},
	{nosdav.ErrReadFailure, http.StatusNotFound, MsgNotFound, "read_failure"},
}

// HandleError writes the response for err and logs it. Unknown errors become
// 500 Internal server error.
func HandleError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = errors.Join(nosdav.ErrTooLarge, err)
	}

	for _, m := range errorMapping {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.code >= http.StatusInternalServerError {
			slog.Error("request error", "error", err)
		} else {
			slog.Info("request rejected", "status", m.code, "error", err)
		}
		if m.reason != "" {
			observability.RejectionsTotal.WithLabelValues(m.reason).Inc()
		}
		WriteError(w, m.code, m.message)
		return
	}

	slog.Error("request error", "error", err)
	WriteError(w, http.StatusInternalServerError, MsgInternal)
}
