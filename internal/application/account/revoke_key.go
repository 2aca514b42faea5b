package account

import (
	"context"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

// RevokeKey sets the revocation timestamp on a single API key. Revoked keys
// fail validation exactly like unknown ones.
type RevokeKey struct {
	keys ports.APIKeyRepository
}

// NewRevokeKey builds the use case.
func NewRevokeKey(keys ports.APIKeyRepository) *RevokeKey {
	return &RevokeKey{keys: keys}
}

// Execute revokes the key. Returns ErrKeyNotFound if no such key exists.
func (uc *RevokeKey) Execute(ctx context.Context, keyID domain.KeyID) error {
	return uc.keys.Revoke(ctx, keyID)
}
