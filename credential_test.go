package nosdav_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/eventsig"
)

func acceptAll(nosdav.AuthEvent) bool { return true }
func rejectAll(nosdav.AuthEvent) bool { return false }

func header(t *testing.T, e nosdav.AuthEvent) string {
	t.Helper()
	h, err := nosdav.EncodeAuthorization(e)
	require.NoError(t, err)
	return h
}

func TestCredentialVerifier_Verify(t *testing.T) {
	t.Run("valid event yields pubkey", func(t *testing.T) {
		v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(acceptAll))
		id, err := v.Verify(header(t, sampleEvent()))
		require.NoError(t, err)
		assert.Equal(t, nosdav.Identity(alice), id)
	})

	t.Run("rejected signature", func(t *testing.T) {
		v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(rejectAll))
		id, err := v.Verify(header(t, sampleEvent()))
		assert.ErrorIs(t, err, nosdav.ErrInvalidSignature)
		assert.ErrorIs(t, err, nosdav.ErrUnauthorized)
		assert.Empty(t, id)
	})

	t.Run("malformed header never reaches verifier", func(t *testing.T) {
		called := false
		v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(func(nosdav.AuthEvent) bool {
			called = true
			return true
		}))
		_, err := v.Verify("Basic dXNlcjpwYXNz")
		assert.ErrorIs(t, err, nosdav.ErrMalformedCredential)
		assert.False(t, called)
	})

	t.Run("real signature", func(t *testing.T) {
		sk, pk, err := eventsig.GenerateKey()
		require.NoError(t, err)
		h, err := eventsig.AuthorizationHeader(sk, "PUT", "http://localhost/x", time.Now())
		require.NoError(t, err)

		v := nosdav.NewCredentialVerifier(eventsig.NewVerifier())
		id, err := v.Verify(h)
		require.NoError(t, err)
		assert.Equal(t, nosdav.Identity(pk), id)
	})
}

func TestCredentialVerifier_VerifyRequest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	bound := func(method, u string, createdAt time.Time) nosdav.AuthEvent {
		e := sampleEvent()
		e.CreatedAt = createdAt.Unix()
		e.Tags = [][]string{{"u", u}, {"method", method}}
		return e
	}

	tests := []struct {
		name    string
		event   nosdav.AuthEvent
		method  string
		target  string
		wantErr error
	}{
		{name: "matching", event: bound("PUT", "http://example.com/a/b.txt", now), method: "PUT", target: "/a/b.txt"},
		{name: "lowercase method tag", event: bound("put", "https://other.host/a/b.txt", now), method: "PUT", target: "/a/b.txt"},
		{name: "within skew", event: bound("PUT", "http://x/a", now.Add(-59*time.Second)), method: "PUT", target: "/a"},
		{name: "too old", event: bound("PUT", "http://x/a", now.Add(-2*time.Minute)), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
		{name: "from the future", event: bound("PUT", "http://x/a", now.Add(2*time.Minute)), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
		{name: "wrong method", event: bound("GET", "http://x/a", now), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
		{name: "wrong path", event: bound("PUT", "http://x/b", now), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
		{name: "missing u tag", event: func() nosdav.AuthEvent {
			e := bound("PUT", "", now)
			e.Tags = [][]string{{"method", "PUT"}}
			return e
		}(), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
		{name: "wrong kind", event: func() nosdav.AuthEvent {
			e := bound("PUT", "http://x/a", now)
			e.Kind = 1
			return e
		}(), method: "PUT", target: "/a", wantErr: nosdav.ErrStaleCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(acceptAll),
				nosdav.WithRequestBinding(time.Minute), nosdav.WithClock(clock))

			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("Authorization", header(t, tt.event))

			id, err := v.VerifyRequest(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, nosdav.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, nosdav.Identity(alice), id)
		})
	}

	t.Run("binding disabled accepts any event", func(t *testing.T) {
		e := sampleEvent()
		e.Kind = 1
		e.Tags = [][]string{}
		e.CreatedAt = 0

		v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(acceptAll))
		r := httptest.NewRequest("PUT", "/anything", nil)
		r.Header.Set("Authorization", header(t, e))

		id, err := v.VerifyRequest(r)
		require.NoError(t, err)
		assert.Equal(t, nosdav.Identity(alice), id)
	})

	t.Run("missing header", func(t *testing.T) {
		v := nosdav.NewCredentialVerifier(nosdav.EventVerifierFunc(acceptAll))
		_, err := v.VerifyRequest(httptest.NewRequest("PUT", "/a", nil))
		assert.ErrorIs(t, err, nosdav.ErrMalformedCredential)
	})
}
