package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// CreateUserInput is the new user's email and tier.
type CreateUserInput struct {
	Email string
	Tier  domain.Tier
}

// CreateUserResult returns the created user and the plain API key (only time
// it is visible).
type CreateUserResult struct {
	User   *domain.User
	APIKey string
}

// CreateUser creates a user with a generated API key; returns the plain key once.
type CreateUser struct {
	users   ports.UserRepository
	keys    ports.APIKeyRepository
	hashKey func(string) string
}

// NewCreateUser builds the use case.
func NewCreateUser(users ports.UserRepository, keys ports.APIKeyRepository, hashKey func(string) string) *CreateUser {
	if hashKey == nil {
		hashKey = sha256Hex
	}
	return &CreateUser{users: users, keys: keys, hashKey: hashKey}
}

// Execute creates the user and returns it with the plain API key.
func (uc *CreateUser) Execute(ctx context.Context, input CreateUserInput) (*CreateUserResult, error) {
	existing, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domerrors.ErrUserExists
	}
	now := time.Now()
	tier := input.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	user := &domain.User{
		ID:        domain.NewUserID(uuid.New()),
		Email:     input.Email,
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	plainKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	key := &domain.APIKey{
		ID:        domain.NewKeyID(uuid.New()),
		UserID:    user.ID,
		KeyHash:   uc.hashKey(plainKey),
		CreatedAt: now,
	}
	if err := uc.keys.Create(ctx, key); err != nil {
		return nil, err
	}
	return &CreateUserResult{User: user, APIKey: plainKey}, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return domain.KeyPrefix + hex.EncodeToString(b), nil
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
