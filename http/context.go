package http

import (
	"context"

	"github.com/nosdav/nosdav"
)

type identityKey struct{}

// SetIdentity stores a verified identity in the context.
func SetIdentity(ctx context.Context, identity nosdav.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (nosdav.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(nosdav.Identity)
	return identity, ok && identity != ""
}
