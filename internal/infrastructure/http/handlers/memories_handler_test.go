package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-labs/engram/internal/application/account"
	memapp "github.com/engram-labs/engram/internal/application/memory"
	"github.com/engram-labs/engram/internal/application/ports"
	snapapp "github.com/engram-labs/engram/internal/application/snapshot"
	"github.com/engram-labs/engram/internal/application/tier"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
	infrahttp "github.com/engram-labs/engram/internal/infrastructure/http"
	"github.com/engram-labs/engram/internal/infrastructure/http/handlers"
	"github.com/engram-labs/engram/internal/infrastructure/http/middleware"
	"github.com/engram-labs/engram/internal/infrastructure/webhook"
)

const testUpgradeURL = "https://engram.dev/pricing"

type memUserRepo struct {
	users map[domain.UserID]*domain.User
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	return r.users[userID], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type memKeyRepo struct {
	keys map[string]*domain.APIKey
}

func (r *memKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	r.keys[key.KeyHash] = key
	return nil
}

func (r *memKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return r.keys[keyHash], nil
}

func (r *memKeyRepo) TouchLastUsed(ctx context.Context, keyID domain.KeyID) error { return nil }

func (r *memKeyRepo) Revoke(ctx context.Context, keyID domain.KeyID) error {
	for _, k := range r.keys {
		if k.ID == keyID {
			now := time.Now()
			k.RevokedAt = &now
			return nil
		}
	}
	return domerrors.ErrKeyNotFound
}

func (r *memKeyRepo) RevokeAllForUser(ctx context.Context, userID domain.UserID) error {
	now := time.Now()
	for _, k := range r.keys {
		if k.UserID == userID && k.RevokedAt == nil {
			k.RevokedAt = &now
		}
	}
	return nil
}

type memMemoryRepo struct {
	memories []*domain.Memory
}

func (r *memMemoryRepo) Insert(ctx context.Context, memory *domain.Memory) error {
	r.memories = append(r.memories, memory)
	return nil
}

func (r *memMemoryRepo) CountByUser(ctx context.Context, userID domain.UserID) (int, error) {
	count := 0
	for _, m := range r.memories {
		if m.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *memMemoryRepo) ListByUser(ctx context.Context, userID domain.UserID, filter ports.MemoryFilter) ([]*domain.Memory, error) {
	var out []*domain.Memory
	for _, m := range r.memories {
		if m.UserID != userID {
			continue
		}
		if filter.Importance != "" && m.Importance != filter.Importance {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memMemoryRepo) SearchByUser(ctx context.Context, userID domain.UserID, query string, limit int) ([]*domain.Memory, error) {
	var out []*domain.Memory
	for _, m := range r.memories {
		if m.UserID != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Content), strings.ToLower(query)) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memMemoryRepo) DeleteOwned(ctx context.Context, userID domain.UserID, memoryID domain.MemoryID) error {
	for i, m := range r.memories {
		if m.ID == memoryID && m.UserID == userID {
			r.memories = append(r.memories[:i], r.memories[i+1:]...)
			return nil
		}
	}
	return domerrors.ErrMemoryNotFound
}

type memSnapshotRepo struct {
	snapshots []*domain.Snapshot
}

func (r *memSnapshotRepo) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueTouchAPIKey(ctx context.Context, keyID domain.KeyID) error { return nil }

type testEnv struct {
	router    http.Handler
	users     *memUserRepo
	keys      *memKeyRepo
	memories  *memMemoryRepo
	snapshots *memSnapshotRepo
	userID    domain.UserID
	apiKey    string
}

// newTestEnv provisions a free-tier user with a valid key behind the full
// router, with in-memory repositories.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	users := &memUserRepo{users: make(map[domain.UserID]*domain.User)}
	keys := &memKeyRepo{keys: make(map[string]*domain.APIKey)}
	memories := &memMemoryRepo{}
	snapshots := &memSnapshotRepo{}

	created, err := account.NewCreateUser(users, keys, nil).Execute(context.Background(), account.CreateUserInput{Email: "dev@example.com"})
	require.NoError(t, err)

	limiter := tier.NewLimiter(users, memories, tier.DefaultFreeLimit)
	emitter := webhook.NewNoopEmitter()

	memoriesHandler := handlers.NewMemoriesHandler(
		memapp.NewSyncMemory(memories, limiter),
		memapp.NewBulkSyncMemories(memories, limiter, log),
		memories,
		testUpgradeURL,
		emitter,
		log,
	)
	snapshotsHandler := handlers.NewSnapshotsHandler(
		snapapp.NewSyncSnapshot(snapshots),
		snapapp.NewBulkSyncSnapshots(snapshots, log),
		emitter,
		log,
	)
	adminHandler := handlers.NewAdminHandler(
		account.NewCreateUser(users, keys, nil),
		account.NewRotateKey(users, keys, nil),
		account.NewRevokeKey(keys),
		log,
	)

	router := infrahttp.NewRouter(infrahttp.RouterConfig{
		MemoriesHandler:  memoriesHandler,
		SnapshotsHandler: snapshotsHandler,
		AdminHandler:     adminHandler,
		Auth:             middleware.NewAPIKeyValidator(keys, noopEnqueuer{}, nil, log),
		RequireAdmin:     middleware.RequireAdminSecret("test-admin-secret"),
		Log:              log,
	})

	return &testEnv{
		router:    router,
		users:     users,
		keys:      keys,
		memories:  memories,
		snapshots: snapshots,
		userID:    created.User.ID,
		apiKey:    created.APIKey,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedMemories(n int) {
	for i := 0; i < n; i++ {
		e.memories.memories = append(e.memories.memories, &domain.Memory{
			ID:         domain.NewMemoryID(uuid.New()),
			UserID:     e.userID,
			Content:    fmt.Sprintf("seed memory %d", i),
			Importance: domain.MemoryImportanceNormal,
			CreatedAt:  time.Now(),
		})
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestSyncMemory_NumericImportance(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{
		"content":    "prefers table-driven tests",
		"importance": 9,
		"tags":       []string{"style"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, true, got["success"])
	_, err := uuid.Parse(got["memoryId"].(string))
	require.NoError(t, err)

	require.Len(t, env.memories.memories, 1)
	assert.Equal(t, domain.MemoryImportanceCritical, env.memories.memories[0].Importance)
}

func TestSyncMemory_MissingContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{
		"content": "   ",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Missing required field: content", got["error"])
}

func TestSyncMemory_QuotaReached(t *testing.T) {
	env := newTestEnv(t)
	env.seedMemories(tier.DefaultFreeLimit)

	rec := env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{
		"content": "one too many",
	})

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Free tier limit reached", got["error"])
	assert.Equal(t, "Free tier is limited to 500 memories. Upgrade for unlimited storage.", got["message"])
	assert.Equal(t, float64(tier.DefaultFreeLimit), got["limit"])
	assert.Equal(t, testUpgradeURL, got["upgradeUrl"])
}

func TestSyncMemory_UnlimitedTierHasNoCap(t *testing.T) {
	env := newTestEnv(t)
	env.users.users[env.userID].Tier = domain.TierUnlimited
	env.seedMemories(tier.DefaultFreeLimit + 50)

	rec := env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{
		"content": "still fits",
	})

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBulkSyncMemories_TooManyItems(t *testing.T) {
	env := newTestEnv(t)

	items := make([]map[string]any, memapp.MaxBulkItems+1)
	for i := range items {
		items[i] = map[string]any{"content": fmt.Sprintf("memory %d", i)}
	}
	rec := env.do(t, http.MethodPost, "/api/memories/bulk-sync", map[string]any{"memories": items})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Maximum 100 memories per request", got["error"])
	assert.Empty(t, env.memories.memories)
}

func TestBulkSyncMemories_QuotaAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedMemories(tier.DefaultFreeLimit - 2)

	items := make([]map[string]any, 5)
	for i := range items {
		items[i] = map[string]any{"content": fmt.Sprintf("memory %d", i)}
	}
	rec := env.do(t, http.MethodPost, "/api/memories/bulk-sync", map[string]any{"memories": items})

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Only 2 memories remaining on free tier. Upgrade for unlimited storage.", got["message"])
	assert.Equal(t, float64(5), got["requested"])
	assert.Equal(t, float64(tier.DefaultFreeLimit-2), got["current"])

	// Nothing from the rejected batch was written.
	count, err := env.memories.CountByUser(context.Background(), env.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.DefaultFreeLimit-2, count)
}

func TestBulkSyncMemories_SkipsInvalidItems(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/memories/bulk-sync", map[string]any{
		"memories": []map[string]any{
			{"content": "first"},
			{"content": ""},
			{"content": "second"},
			{"context": "no content at all"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, float64(2), got["synced"])
	assert.Equal(t, float64(4), got["total"])
	assert.Len(t, env.memories.memories, 2)
}

func TestListMemories_ImportanceFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seedMemories(3)
	env.memories.memories = append(env.memories.memories, &domain.Memory{
		ID:         domain.NewMemoryID(uuid.New()),
		UserID:     env.userID,
		Content:    "deploy requires migration",
		Importance: domain.MemoryImportanceCritical,
		CreatedAt:  time.Now(),
	})

	rec := env.do(t, http.MethodGet, "/api/memories?importance=critical", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	items := got["memories"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "deploy requires migration", first["content"])
	assert.Equal(t, "critical", first["importance"])
}

func TestListMemories_LimitIsCapped(t *testing.T) {
	env := newTestEnv(t)
	env.seedMemories(120)

	rec := env.do(t, http.MethodGet, "/api/memories?limit=5000", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Len(t, got["memories"].([]any), 100)
}

func TestSearchMemories_MissingQuery(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/memories/search", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Missing required parameter: q", got["error"])
}

func TestSearchMemories_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	otherUser := domain.NewUserID(uuid.New())
	env.memories.memories = append(env.memories.memories,
		&domain.Memory{ID: domain.NewMemoryID(uuid.New()), UserID: env.userID, Content: "postgres tuning notes", Importance: domain.MemoryImportanceNormal, CreatedAt: time.Now()},
		&domain.Memory{ID: domain.NewMemoryID(uuid.New()), UserID: otherUser, Content: "postgres secrets of another user", Importance: domain.MemoryImportanceNormal, CreatedAt: time.Now()},
	)

	rec := env.do(t, http.MethodGet, "/api/memories/search?q=postgres", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	items := got["memories"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "postgres tuning notes", items[0].(map[string]any)["content"])
}

func TestDeleteMemory_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	otherUser := domain.NewUserID(uuid.New())
	theirs := &domain.Memory{ID: domain.NewMemoryID(uuid.New()), UserID: otherUser, Content: "not yours", Importance: domain.MemoryImportanceNormal, CreatedAt: time.Now()}
	env.memories.memories = append(env.memories.memories, theirs)

	rec := env.do(t, http.MethodPost, "/api/memories/delete", map[string]any{"id": theirs.ID.String()})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, env.memories.memories, 1)
}

func TestDeleteMemory_OwnMemory(t *testing.T) {
	env := newTestEnv(t)
	mine := &domain.Memory{ID: domain.NewMemoryID(uuid.New()), UserID: env.userID, Content: "mine", Importance: domain.MemoryImportanceNormal, CreatedAt: time.Now()}
	env.memories.memories = append(env.memories.memories, mine)

	rec := env.do(t, http.MethodPost, "/api/memories/delete", map[string]any{"id": mine.ID.String()})

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, true, got["success"])
	assert.Empty(t, env.memories.memories)
}

func TestDeleteMemory_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/memories/delete", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: id", decodeBody(t, rec)["error"])

	// A malformed id cannot name an existing memory.
	rec = env.do(t, http.MethodPost, "/api/memories/delete", map[string]any{"id": "not-a-uuid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemories_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid API key","code":"unauthorized"}`, rec.Body.String())
}

func TestRevokedKeyCannotSync(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{"content": "before revocation"})
	require.Equal(t, http.StatusCreated, rec.Code)

	adminReq := httptest.NewRequest(http.MethodPost, "/admin/users/"+env.userID.String()+"/rotate-key", nil)
	adminReq.Header.Set("X-Engram-Admin-Secret", "test-admin-secret")
	adminRec := httptest.NewRecorder()
	env.router.ServeHTTP(adminRec, adminReq)
	require.Equal(t, http.StatusOK, adminRec.Code, adminRec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{"content": "after revocation"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The freshly rotated key works.
	env.apiKey = decodeBody(t, adminRec)["apiKey"].(string)
	rec = env.do(t, http.MethodPost, "/api/memories/sync", map[string]any{"content": "with new key"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
