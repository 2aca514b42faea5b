package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// RotateKeyInput is the user whose keys are rotated.
type RotateKeyInput struct {
	UserID domain.UserID
}

// RotateKeyResult returns the new plain API key (only time it is visible).
type RotateKeyResult struct {
	APIKey string
}

// RotateKey revokes the user's active keys and issues a fresh one.
type RotateKey struct {
	users   ports.UserRepository
	keys    ports.APIKeyRepository
	hashKey func(string) string
}

// NewRotateKey builds the use case.
func NewRotateKey(users ports.UserRepository, keys ports.APIKeyRepository, hashKey func(string) string) *RotateKey {
	if hashKey == nil {
		hashKey = sha256Hex
	}
	return &RotateKey{users: users, keys: keys, hashKey: hashKey}
}

// Execute rotates the user's key and returns the new plain key.
func (uc *RotateKey) Execute(ctx context.Context, input RotateKeyInput) (*RotateKeyResult, error) {
	user, err := uc.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domerrors.ErrUserNotFound
	}
	if err := uc.keys.RevokeAllForUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	plainKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	key := &domain.APIKey{
		ID:        domain.NewKeyID(uuid.New()),
		UserID:    input.UserID,
		KeyHash:   uc.hashKey(plainKey),
		CreatedAt: time.Now(),
	}
	if err := uc.keys.Create(ctx, key); err != nil {
		return nil, err
	}
	return &RotateKeyResult{APIKey: plainKey}, nil
}
