package nosdav

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated identity may not write the target
	ErrForbidden = errors.New("forbidden")
)

// Credential failures. All of them wrap ErrUnauthorized.
var (
	ErrMalformedCredential = fmt.Errorf("malformed credential: %w", ErrUnauthorized)
	ErrInvalidSignature    = fmt.Errorf("invalid signature: %w", ErrUnauthorized)
	ErrStaleCredential     = fmt.Errorf("credential not bound to request: %w", ErrUnauthorized)
)

// Namespace policy failures. All of them wrap ErrForbidden.
var (
	ErrOwnershipMismatch = fmt.Errorf("wrong owner: %w", ErrForbidden)
	ErrNamespaceMismatch = fmt.Errorf("wrong pubkey: %w", ErrForbidden)
	ErrInvalidTargetDir  = fmt.Errorf("invalid target directory structure: %w", ErrForbidden)
	ErrPathEscape        = fmt.Errorf("target path outside allowed directory: %w", ErrForbidden)
)

// Storage failures.
var (
	ErrDirectoryCreate = errors.New("error creating directory")
	ErrStreamWrite     = errors.New("error writing file")
	ErrReadFailure     = errors.New("error reading file")
	ErrTooLarge        = errors.New("file too large")
)
