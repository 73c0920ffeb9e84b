package nosdav_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdav/nosdav"
)

func sampleEvent() nosdav.AuthEvent {
	return nosdav.AuthEvent{
		ID:        "id",
		PubKey:    alice,
		CreatedAt: 1700000000,
		Kind:      nosdav.KindHTTPAuth,
		Tags:      [][]string{{"u", "http://localhost/x"}, {"method", "PUT"}},
		Content:   "",
		Sig:       "sig",
	}
}

func TestEncodeDecodeAuthorization(t *testing.T) {
	header, err := nosdav.EncodeAuthorization(sampleEvent())
	require.NoError(t, err)
	assert.True(t, len(header) > len(nosdav.AuthScheme))
	assert.Equal(t, nosdav.AuthScheme, header[:len(nosdav.AuthScheme)])

	got, err := nosdav.DecodeAuthorization(header)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), got)
}

func TestDecodeAuthorization_Encodings(t *testing.T) {
	raw := []byte(`{"id":"i","pubkey":"` + alice + `","created_at":1,"kind":1,"tags":[],"content":"?>","sig":"s"}`)

	encodings := map[string]*base64.Encoding{
		"std":     base64.StdEncoding,
		"raw std": base64.RawStdEncoding,
		"url":     base64.URLEncoding,
		"raw url": base64.RawURLEncoding,
	}

	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			event, err := nosdav.DecodeAuthorization("Nostr " + enc.EncodeToString(raw))
			require.NoError(t, err)
			assert.Equal(t, alice, event.PubKey)
			assert.Equal(t, "?>", event.Content)
		})
	}
}

func TestDecodeAuthorization_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "bearer scheme", header: "Bearer abc"},
		{name: "lowercase scheme", header: "nostr eyJ9"},
		{name: "scheme only", header: "Nostr "},
		{name: "not base64", header: "Nostr !!!"},
		{name: "not json", header: "Nostr " + base64.StdEncoding.EncodeToString([]byte("hello"))},
		{name: "json array", header: "Nostr " + base64.StdEncoding.EncodeToString([]byte("[1,2]"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := nosdav.DecodeAuthorization(tt.header)
			assert.ErrorIs(t, err, nosdav.ErrMalformedCredential)
			assert.ErrorIs(t, err, nosdav.ErrUnauthorized)
		})
	}
}

func TestAuthEvent_Tag(t *testing.T) {
	e := sampleEvent()
	e.Tags = append(e.Tags, []string{"method", "GET"}, []string{"empty"})

	v, ok := e.Tag("method")
	assert.True(t, ok)
	assert.Equal(t, "PUT", v)

	_, ok = e.Tag("empty")
	assert.False(t, ok)

	_, ok = e.Tag("missing")
	assert.False(t, ok)
}
