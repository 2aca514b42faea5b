package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	snapapp "github.com/engram-labs/engram/internal/application/snapshot"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
	"github.com/engram-labs/engram/internal/infrastructure/http/middleware"
)

// SnapshotsHandler handles /api/snapshots/*. Requires API key auth. Write
// only; snapshot reads live elsewhere.
type SnapshotsHandler struct {
	syncUC  *snapapp.SyncSnapshot
	bulkUC  *snapapp.BulkSyncSnapshots
	emitter ports.WebhookEmitter
	log     zerolog.Logger
}

// NewSnapshotsHandler creates the handler.
func NewSnapshotsHandler(syncUC *snapapp.SyncSnapshot, bulkUC *snapapp.BulkSyncSnapshots, emitter ports.WebhookEmitter, log zerolog.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{syncUC: syncUC, bulkUC: bulkUC, emitter: emitter, log: log}
}

// snapshotPayload is the wire shape of one snapshot.
type snapshotPayload struct {
	ProjectPath string   `json:"projectPath"`
	Summary     string   `json:"summary"`
	Context     string   `json:"context"`
	Decisions   string   `json:"decisions"`
	NextSteps   string   `json:"nextSteps"`
	Files       []string `json:"files"`
	Importance  any      `json:"importance"`
	CreatedAt   *int64   `json:"createdAt"`
}

func (p snapshotPayload) toItem() snapapp.ItemInput {
	return snapapp.ItemInput{
		ProjectPath: p.ProjectPath,
		Summary:     p.Summary,
		Context:     p.Context,
		Decisions:   p.Decisions,
		NextSteps:   p.NextSteps,
		Files:       p.Files,
		Importance:  p.Importance,
		CreatedAt:   p.CreatedAt,
	}
}

// Sync handles POST /api/snapshots/sync. Returns 201 { "success", "snapshotId" }.
func (h *SnapshotsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body snapshotPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	s, err := h.syncUC.Execute(r.Context(), id.UserID, body.toItem())
	if err != nil {
		if errors.Is(err, domerrors.ErrMissingSnapshotFields) {
			writeErr(w, http.StatusBadRequest, "", "Missing required fields: projectPath, summary, context")
		} else {
			h.log.Error().Err(err).Msg("snapshot sync failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		AuditEmit(h.log, r, h.emitter, "snapshot.sync", id.UserID.String(), false, err.Error())
		return
	}
	middleware.RecordSyncRecords("snapshot", "synced", 1)
	AuditEmit(h.log, r, h.emitter, "snapshot.sync", id.UserID.String(), true, "")
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "snapshotId": s.ID.String()})
}

// BulkSync handles POST /api/snapshots/bulk-sync. Body: { "snapshots": [...] },
// capped at 100 items. Returns 200 { "success", "synced", "total" }.
func (h *SnapshotsHandler) BulkSync(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeErr(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	var body struct {
		Snapshots []snapshotPayload `json:"snapshots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Snapshots == nil {
		writeErr(w, http.StatusBadRequest, "", "snapshots must be an array")
		return
	}
	if len(body.Snapshots) > snapapp.MaxBulkItems {
		writeErr(w, http.StatusBadRequest, "", fmt.Sprintf("Maximum %d snapshots per request", snapapp.MaxBulkItems))
		return
	}
	items := make([]snapapp.ItemInput, 0, len(body.Snapshots))
	for _, p := range body.Snapshots {
		items = append(items, p.toItem())
	}
	synced, total := h.bulkUC.Execute(r.Context(), id.UserID, items)
	middleware.RecordSyncRecords("snapshot", "synced", synced)
	middleware.RecordSyncRecords("snapshot", "skipped", total-synced)
	AuditEmit(h.log, r, h.emitter, "snapshot.bulk_sync", id.UserID.String(), true, "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "synced": synced, "total": total})
}
