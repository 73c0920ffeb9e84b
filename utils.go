package nosdav

import (
	"path"
	"strings"
)

// IdentityLength is the length of a hex encoded 32 byte x-only public key.
const IdentityLength = 64

// IsValidIdentity reports whether s is exactly 64 lowercase hex characters.
//
// This is a configuration check for owner lists. It is not an authentication
// control: request identities are trusted only after signature verification.
func IsValidIdentity(s string) bool {
	if len(s) != IdentityLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ContentTypeFor returns the Content-Type served for a file, based only on its extension.
func ContentTypeFor(p string) string {
	switch path.Ext(p) {
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// segments splits a slash separated path and drops empty segments.
func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
