package nosdav

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EventVerifier checks the cryptographic validity of an event.
// Verify returns true only if the event's signature is valid for its pubkey.
type EventVerifier interface {
	Verify(event AuthEvent) bool
}

// EventVerifierFunc adapts a function to EventVerifier.
type EventVerifierFunc func(AuthEvent) bool

func (f EventVerifierFunc) Verify(event AuthEvent) bool {
	return f(event)
}

// CredentialVerifier turns an Authorization header into a trusted Identity.
type CredentialVerifier struct {
	events      EventVerifier
	bindRequest bool
	maxSkew     time.Duration
	now         func() time.Time
}

// VerifierOption configures a CredentialVerifier.
type VerifierOption func(*CredentialVerifier)

// WithRequestBinding makes VerifyRequest require an HTTP auth event (kind 27235)
// created within maxSkew of now whose method and u tags match the request.
func WithRequestBinding(maxSkew time.Duration) VerifierOption {
	return func(v *CredentialVerifier) {
		v.bindRequest = true
		v.maxSkew = maxSkew
	}
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *CredentialVerifier) {
		v.now = now
	}
}

// NewCredentialVerifier creates a verifier that delegates signature checks to events.
func NewCredentialVerifier(events EventVerifier, opts ...VerifierOption) *CredentialVerifier {
	v := &CredentialVerifier{
		events:  events,
		maxSkew: 60 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify decodes the header, checks the event signature and returns the signer.
//
// The returned error always wraps ErrUnauthorized:
//   - ErrMalformedCredential: empty header, wrong scheme, bad base64 or JSON
//   - ErrInvalidSignature: the event verifier rejected the event
func (v *CredentialVerifier) Verify(header string) (Identity, error) {
	event, err := v.verifyEvent(header)
	if err != nil {
		return "", err
	}
	return Identity(event.PubKey), nil
}

// VerifyRequest verifies the request's Authorization header. With request
// binding enabled it also checks the event against the request method and path.
func (v *CredentialVerifier) VerifyRequest(r *http.Request) (Identity, error) {
	event, err := v.verifyEvent(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}

	if v.bindRequest {
		if err := v.checkBinding(event, r); err != nil {
			return "", err
		}
	}

	return Identity(event.PubKey), nil
}

func (v *CredentialVerifier) verifyEvent(header string) (AuthEvent, error) {
	event, err := DecodeAuthorization(header)
	if err != nil {
		return AuthEvent{}, fmt.Errorf("verify credential: %w", err)
	}

	if !v.events.Verify(event) {
		return AuthEvent{}, fmt.Errorf("verify credential: %w", ErrInvalidSignature)
	}

	slog.Debug("credential verified", "pubkey", event.PubKey, "kind", event.Kind)
	return event, nil
}

func (v *CredentialVerifier) checkBinding(event AuthEvent, r *http.Request) error {
	if event.Kind != KindHTTPAuth {
		return fmt.Errorf("verify credential: kind %d: %w", event.Kind, ErrStaleCredential)
	}

	created := time.Unix(event.CreatedAt, 0)
	if skew := v.now().Sub(created).Abs(); skew > v.maxSkew {
		return fmt.Errorf("verify credential: created_at off by %s: %w", skew, ErrStaleCredential)
	}

	method, _ := event.Tag("method")
	if !strings.EqualFold(method, r.Method) {
		return fmt.Errorf("verify credential: method tag %q: %w", method, ErrStaleCredential)
	}

	rawURL, _ := event.Tag("u")
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return fmt.Errorf("verify credential: invalid u tag: %w", ErrStaleCredential)
	}
	if u.Path != r.URL.Path {
		return fmt.Errorf("verify credential: u tag path %q: %w", u.Path, ErrStaleCredential)
	}

	return nil
}
