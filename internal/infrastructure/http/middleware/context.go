package middleware

import (
	"context"

	"github.com/engram-labs/engram/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller derived from a validated API key.
type Identity struct {
	UserID domain.UserID
	KeyID  domain.KeyID
}

// WithIdentity injects the identity into the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity from the context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	v := ctx.Value(identityContextKey)
	if v == nil {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
