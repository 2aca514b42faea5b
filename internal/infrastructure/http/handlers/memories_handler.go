package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	memapp "github.com/engram-labs/engram/internal/application/memory"
	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/application/tier"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
	"github.com/engram-labs/engram/internal/infrastructure/http/middleware"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 100
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// MemoriesHandler handles /api/memories/*. Requires API key auth.
type MemoriesHandler struct {
	syncUC     *memapp.SyncMemory
	bulkUC     *memapp.BulkSyncMemories
	memories   ports.MemoryRepository
	upgradeURL string
	emitter    ports.WebhookEmitter
	log        zerolog.Logger
}

// NewMemoriesHandler creates the handler.
func NewMemoriesHandler(syncUC *memapp.SyncMemory, bulkUC *memapp.BulkSyncMemories, memories ports.MemoryRepository, upgradeURL string, emitter ports.WebhookEmitter, log zerolog.Logger) *MemoriesHandler {
	return &MemoriesHandler{
		syncUC:     syncUC,
		bulkUC:     bulkUC,
		memories:   memories,
		upgradeURL: upgradeURL,
		emitter:    emitter,
		log:        log,
	}
}

// memoryPayload is the wire shape of one memory. Importance stays untyped:
// clients send either an enum string or a 0-10 score. summary/type and
// metadata.tags are alternate client shapes handled by the use case.
type memoryPayload struct {
	Content    string   `json:"content"`
	Context    string   `json:"context"`
	Summary    string   `json:"summary"`
	Type       string   `json:"type"`
	Importance any      `json:"importance"`
	Tags       []string `json:"tags"`
	Metadata   struct {
		Tags []string `json:"tags"`
	} `json:"metadata"`
	CreatedAt *int64 `json:"createdAt"`
}

func (p memoryPayload) toItem() memapp.ItemInput {
	return memapp.ItemInput{
		Content:      p.Content,
		Context:      p.Context,
		Summary:      p.Summary,
		Type:         p.Type,
		Importance:   p.Importance,
		Tags:         p.Tags,
		MetadataTags: p.Metadata.Tags,
		CreatedAt:    p.CreatedAt,
	}
}

// memoryResponse is the wire shape of a stored memory.
type memoryResponse struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Context    string   `json:"context,omitempty"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
}

func toMemoryResponse(m *domain.Memory) memoryResponse {
	return memoryResponse{
		ID:         m.ID.String(),
		Content:    m.Content,
		Context:    m.Context,
		Importance: string(m.Importance),
		Tags:       m.Tags,
		CreatedAt:  m.CreatedAt.UnixMilli(),
	}
}

// Sync handles POST /api/memories/sync. Returns 201 { "success", "memoryId" }.
func (h *MemoriesHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body memoryPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	m, err := h.syncUC.Execute(r.Context(), id.UserID, body.toItem())
	if err != nil {
		var lerr *tier.LimitError
		switch {
		case errors.Is(err, domerrors.ErrMissingContent):
			writeErr(w, http.StatusBadRequest, "", "Missing required field: content")
		case errors.As(err, &lerr):
			h.writeQuotaErr(w, lerr)
		default:
			h.log.Error().Err(err).Msg("memory sync failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		AuditEmit(h.log, r, h.emitter, "memory.sync", id.UserID.String(), false, err.Error())
		return
	}
	middleware.RecordSyncRecords("memory", "synced", 1)
	AuditEmit(h.log, r, h.emitter, "memory.sync", id.UserID.String(), true, "")
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "memoryId": m.ID.String()})
}

// BulkSync handles POST /api/memories/bulk-sync. Body: { "memories": [...] },
// capped at 100 items. Returns 200 { "success", "synced", "total" }.
func (h *MemoriesHandler) BulkSync(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body struct {
		Memories []memoryPayload `json:"memories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Memories == nil {
		writeErr(w, http.StatusBadRequest, "", "memories must be an array")
		return
	}
	if len(body.Memories) > memapp.MaxBulkItems {
		writeErr(w, http.StatusBadRequest, "", fmt.Sprintf("Maximum %d memories per request", memapp.MaxBulkItems))
		return
	}
	items := make([]memapp.ItemInput, 0, len(body.Memories))
	for _, p := range body.Memories {
		items = append(items, p.toItem())
	}
	synced, total, err := h.bulkUC.Execute(r.Context(), id.UserID, items)
	if err != nil {
		var lerr *tier.LimitError
		if errors.As(err, &lerr) {
			h.writeQuotaErr(w, lerr)
		} else {
			h.log.Error().Err(err).Msg("memory bulk sync failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		AuditEmit(h.log, r, h.emitter, "memory.bulk_sync", id.UserID.String(), false, err.Error())
		return
	}
	middleware.RecordSyncRecords("memory", "synced", synced)
	middleware.RecordSyncRecords("memory", "skipped", total-synced)
	AuditEmit(h.log, r, h.emitter, "memory.bulk_sync", id.UserID.String(), true, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "synced": synced, "total": total})
}

// writeQuotaErr sends the 402 upgrade-oriented payload. 402 is deliberate:
// the caller needs a billing action, not a retry.
func (h *MemoriesHandler) writeQuotaErr(w http.ResponseWriter, lerr *tier.LimitError) {
	remaining := lerr.Limit - lerr.Current
	if remaining < 0 {
		remaining = 0
	}
	body := map[string]any{
		"error":      "Free tier limit reached",
		"code":       ErrCodeQuotaExceeded,
		"limit":      lerr.Limit,
		"current":    lerr.Current,
		"upgradeUrl": h.upgradeURL,
	}
	if lerr.Requested > 0 {
		body["requested"] = lerr.Requested
		body["message"] = fmt.Sprintf("Only %d memories remaining on free tier. Upgrade for unlimited storage.", remaining)
	} else {
		body["message"] = fmt.Sprintf("Free tier is limited to %d memories. Upgrade for unlimited storage.", lerr.Limit)
	}
	writeJSON(w, http.StatusPaymentRequired, body)
}

// List handles GET /api/memories?limit=&importance=.
func (h *MemoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	filter := ports.MemoryFilter{Limit: parseLimit(r, defaultListLimit, maxListLimit)}
	if imp := r.URL.Query().Get("importance"); imp != "" {
		filter.Importance = domain.MemoryImportance(imp)
	}
	memories, err := h.memories.ListByUser(r.Context(), id.UserID, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("list memories failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	items := make([]memoryResponse, 0, len(memories))
	for _, m := range memories {
		items = append(items, toMemoryResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": items})
}

// Search handles GET /api/memories/search?q=&limit=. q is required.
func (h *MemoriesHandler) Search(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeErr(w, http.StatusBadRequest, "", "Missing required parameter: q")
		return
	}
	limit := parseLimit(r, defaultSearchLimit, maxSearchLimit)
	memories, err := h.memories.SearchByUser(r.Context(), id.UserID, q, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("search memories failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	items := make([]memoryResponse, 0, len(memories))
	for _, m := range memories {
		items = append(items, toMemoryResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": items})
}

// Delete handles POST /api/memories/delete. Body: { "id": "<uuid>" }.
// Deletes only the caller's own memory; a missing row and an ownership
// mismatch are reported identically.
func (h *MemoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if body.ID == "" {
		writeErr(w, http.StatusBadRequest, "", "Missing required field: id")
		return
	}
	memID, err := uuid.Parse(body.ID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "", domerrors.ErrMemoryNotFound.Error())
		return
	}
	if err := h.memories.DeleteOwned(r.Context(), id.UserID, domain.NewMemoryID(memID)); err != nil {
		if errors.Is(err, domerrors.ErrMemoryNotFound) {
			writeErr(w, http.StatusNotFound, "", err.Error())
		} else {
			h.log.Error().Err(err).Msg("delete memory failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		AuditEmit(h.log, r, h.emitter, "memory.delete", id.UserID.String(), false, err.Error())
		return
	}
	AuditEmit(h.log, r, h.emitter, "memory.delete", id.UserID.String(), true, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
			if limit > max {
				limit = max
			}
		}
	}
	return limit
}
