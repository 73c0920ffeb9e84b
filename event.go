package nosdav

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AuthScheme is the Authorization header prefix. Matching is case-sensitive.
const AuthScheme = "Nostr "

// KindHTTPAuth is the event kind used for HTTP authorization events.
const KindHTTPAuth = 27235

// AuthEvent is a signed Nostr event carried in the Authorization header.
type AuthEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Tag returns the first value of the first tag with the given name.
func (e AuthEvent) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

// DecodeAuthorization parses an Authorization header value into an AuthEvent.
// It does not verify the signature.
func DecodeAuthorization(header string) (AuthEvent, error) {
	if header == "" {
		return AuthEvent{}, fmt.Errorf("decode authorization: empty header: %w", ErrMalformedCredential)
	}

	payload, ok := strings.CutPrefix(header, AuthScheme)
	if !ok {
		return AuthEvent{}, fmt.Errorf("decode authorization: missing %q prefix: %w", strings.TrimSpace(AuthScheme), ErrMalformedCredential)
	}

	raw, err := decodeBase64(strings.TrimSpace(payload))
	if err != nil {
		return AuthEvent{}, fmt.Errorf("decode authorization: %w: %w", ErrMalformedCredential, err)
	}

	var event AuthEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return AuthEvent{}, fmt.Errorf("decode authorization: parse event: %w: %w", ErrMalformedCredential, err)
	}

	return event, nil
}

// EncodeAuthorization renders an event as an Authorization header value.
func EncodeAuthorization(event AuthEvent) (string, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode authorization: %w", err)
	}
	return AuthScheme + base64.StdEncoding.EncodeToString(raw), nil
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	var firstErr error
	for _, enc := range base64Encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("base64: %w", firstErr)
}
