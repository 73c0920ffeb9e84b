package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
)

// Errors for configuration validation.
var (
	ErrSecretKeyRequired = errors.New("secret key is required")
	ErrInvalidSecretKey  = errors.New("secret key must be 64 hex characters")
	ErrConfigRequired    = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrEmptyPath = errors.New("path is required")

	// ErrNestedPath is returned for a namespaced upload whose remote path is
	// not a single file name; multiuser servers reject those.
	ErrNestedPath = errors.New("namespaced uploads must be a single file name")
)

// ErrNotNosdav is returned by Ping when the endpoint answers but does not
// accept signed PUTs.
var ErrNotNosdav = errors.New("endpoint does not accept uploads")
