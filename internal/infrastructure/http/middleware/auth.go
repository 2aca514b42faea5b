package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

// HashAPIKeyFunc hashes an API key for storage/lookup (SHA-256).
type HashAPIKeyFunc func(string) string

// SHA256HashAPIKey returns a function that SHA256-hashes the key (lowercase hex).
func SHA256HashAPIKey() HashAPIKeyFunc {
	return func(key string) string {
		h := sha256.Sum256([]byte(key))
		return hex.EncodeToString(h[:])
	}
}

// APIKeyValidator validates `Authorization: Bearer sk_<opaque>` and sets the
// owning identity in context (see IdentityFromContext). A missing header, a
// token without the sk_ prefix, an unknown hash and a revoked key all produce
// the same 401; callers cannot probe which keys exist.
type APIKeyValidator struct {
	keys       ports.APIKeyRepository
	enqueuer   ports.TaskEnqueuer
	hashAPIKey HashAPIKeyFunc
	log        zerolog.Logger
}

// NewAPIKeyValidator builds the middleware.
func NewAPIKeyValidator(keys ports.APIKeyRepository, enqueuer ports.TaskEnqueuer, hashAPIKey HashAPIKeyFunc, log zerolog.Logger) *APIKeyValidator {
	if hashAPIKey == nil {
		hashAPIKey = SHA256HashAPIKey()
	}
	return &APIKeyValidator{keys: keys, enqueuer: enqueuer, hashAPIKey: hashAPIKey, log: log}
}

func (m *APIKeyValidator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeErrAuth(w)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(token, domain.KeyPrefix) {
			writeErrAuth(w)
			return
		}
		hash := m.hashAPIKey(token)
		key, err := m.keys.GetByHash(r.Context(), hash)
		if err != nil {
			m.log.Error().Err(err).Msg("API key lookup failed")
			writeErrInternal(w)
			return
		}
		if key == nil || key.Revoked() {
			writeErrAuth(w)
			return
		}
		// Best-effort telemetry; never blocks or fails the request.
		if err := m.enqueuer.EnqueueTouchAPIKey(r.Context(), key.ID); err != nil {
			m.log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("enqueue last-used touch failed")
		}
		ctx := WithIdentity(r.Context(), &Identity{UserID: key.UserID, KeyID: key.ID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeErrAuth(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid API key", "code": "unauthorized"})
}

func writeErrInternal(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error", "code": "internal_error"})
}
