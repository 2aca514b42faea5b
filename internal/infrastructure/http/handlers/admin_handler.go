package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/account"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// AdminHandler handles /admin/* (create user, rotate key, revoke key).
// Requires X-Engram-Admin-Secret.
type AdminHandler struct {
	createUser *account.CreateUser
	rotateKey  *account.RotateKey
	revokeKey  *account.RevokeKey
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(createUser *account.CreateUser, rotateKey *account.RotateKey, revokeKey *account.RevokeKey, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		createUser: createUser,
		rotateKey:  rotateKey,
		revokeKey:  revokeKey,
		validate:   validator.New(),
		log:        log,
	}
}

// CreateUser handles POST /admin/users. Body: { "email", "tier" }. Returns
// { "id", "email", "tier", "apiKey" }; the plain key is visible only here.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email,max=254"`
		Tier  string `json:"tier" validate:"omitempty,oneof=free unlimited"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	result, err := h.createUser.Execute(r.Context(), account.CreateUserInput{
		Email: email,
		Tier:  domain.Tier(body.Tier),
	})
	if err != nil {
		if err == domerrors.ErrUserExists {
			writeErr(w, http.StatusConflict, "", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("create user failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     result.User.ID.String(),
		"email":  result.User.Email,
		"tier":   string(result.User.Tier),
		"apiKey": result.APIKey,
	})
}

// RotateKey handles POST /admin/users/{id}/rotate-key. Revokes the user's
// active keys and returns { "apiKey": "..." }.
func (h *AdminHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		writeErr(w, http.StatusBadRequest, "", "user id required")
		return
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid user id")
		return
	}
	result, err := h.rotateKey.Execute(r.Context(), account.RotateKeyInput{
		UserID: domain.NewUserID(id),
	})
	if err != nil {
		if err == domerrors.ErrUserNotFound {
			writeErr(w, http.StatusNotFound, "", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("rotate key failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": result.APIKey})
}

// RevokeKey handles POST /admin/keys/revoke. Body: { "keyId": "<uuid>" }.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		KeyID string `json:"keyId" validate:"required,uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	keyID, err := uuid.Parse(body.KeyID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid keyId")
		return
	}
	if err := h.revokeKey.Execute(r.Context(), domain.NewKeyID(keyID)); err != nil {
		if err == domerrors.ErrKeyNotFound {
			writeErr(w, http.StatusNotFound, "", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("revoke key failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
