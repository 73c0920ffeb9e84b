// Package eventsig verifies and produces BIP-340 Schnorr signatures on Nostr
// events, the signature scheme behind nosdav authorization headers.
package eventsig

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/nosdav/nosdav"
)

var (
	// ErrInvalidKey is returned for a public or secret key that does not decode.
	ErrInvalidKey = errors.New("invalid key")
	// ErrIDMismatch is returned when the event id is not the hash of its content.
	ErrIDMismatch = errors.New("event id mismatch")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("bad signature")
)

// Verifier implements nosdav.EventVerifier with BIP-340 Schnorr verification.
type Verifier struct{}

// NewVerifier returns a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether the event id matches its content and the signature
// is valid for the event pubkey.
func (v *Verifier) Verify(e nosdav.AuthEvent) bool {
	if err := Check(e); err != nil {
		slog.Debug("event signature rejected", "pubkey", e.PubKey, "err", err)
		return false
	}
	return true
}

// Check is Verify with the reason for rejection.
func Check(e nosdav.AuthEvent) error {
	if !nosdav.IsValidIdentity(e.PubKey) {
		return fmt.Errorf("check event: pubkey: %w", ErrInvalidKey)
	}

	pkBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("check event: pubkey: %w", ErrInvalidKey)
	}

	pub, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return fmt.Errorf("check event: parse pubkey: %w: %w", ErrInvalidKey, err)
	}

	hash := Hash(e)
	if e.ID != hex.EncodeToString(hash[:]) {
		return fmt.Errorf("check event: %w", ErrIDMismatch)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("check event: decode signature: %w", ErrBadSignature)
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("check event: parse signature: %w: %w", ErrBadSignature, err)
	}

	if !sig.Verify(hash[:], pub) {
		return fmt.Errorf("check event: %w", ErrBadSignature)
	}

	return nil
}

// GenerateKey creates a new secp256k1 keypair and returns the hex encoded
// secret key and x-only public key.
func GenerateKey() (secretKey, publicKey string, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(priv.Serialize()), hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

// PublicKey derives the hex x-only public key for a hex secret key.
func PublicKey(secretKey string) (string, error) {
	priv, err := parseSecretKey(secretKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

// Sign sets the event pubkey, id and sig using the hex secret key.
func Sign(e *nosdav.AuthEvent, secretKey string) error {
	priv, err := parseSecretKey(secretKey)
	if err != nil {
		return err
	}

	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	if e.Tags == nil {
		e.Tags = [][]string{}
	}

	hash := Hash(*e)
	e.ID = hex.EncodeToString(hash[:])

	sig, err := schnorr.Sign(priv, hash[:])
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())

	return nil
}

// NewHTTPAuthEvent returns an unsigned kind 27235 event bound to a request.
func NewHTTPAuthEvent(method, url string, createdAt time.Time) nosdav.AuthEvent {
	return nosdav.AuthEvent{
		CreatedAt: createdAt.Unix(),
		Kind:      nosdav.KindHTTPAuth,
		Tags: [][]string{
			{"u", url},
			{"method", method},
		},
		Content: "",
	}
}

// AuthorizationHeader signs a request-bound event and encodes it as an
// Authorization header value.
func AuthorizationHeader(secretKey, method, url string, now time.Time) (string, error) {
	event := NewHTTPAuthEvent(method, url, now)
	if err := Sign(&event, secretKey); err != nil {
		return "", err
	}
	return nosdav.EncodeAuthorization(event)
}

func parseSecretKey(secretKey string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(secretKey)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("parse secret key: %w", ErrInvalidKey)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}
