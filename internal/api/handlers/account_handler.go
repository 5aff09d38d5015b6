package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gkasar/healthdash-be/internal/auth"
	"github.com/gkasar/healthdash-be/internal/services"
)

// AccountHandler handles changes to the authenticated caller's own
// account. All routes sit behind the session middleware.
type AccountHandler struct {
	service services.IdentityServiceProvider
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service services.IdentityServiceProvider) *AccountHandler {
	return &AccountHandler{service: service}
}

// ChangePassword overwrites the caller's password. Existing sessions stay
// valid afterwards.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve session identity", http.StatusInternalServerError)
		return
	}

	var payload struct {
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.NewPassword == "" {
		http.Error(w, "New password is required", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdatePassword(identity.ID, payload.NewPassword); err != nil {
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Failed to change password")
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password updated successfully"})
}

// ChangeEmail updates the caller's email address, subject to the same
// uniqueness rule as registration.
func (h *AccountHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve session identity", http.StatusInternalServerError)
		return
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateEmail(identity.ID, payload.Email); err != nil {
		if errors.Is(err, services.ErrDuplicateIdentity) {
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Failed to change email")
		http.Error(w, "Failed to change email", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Email updated successfully"})
}

// Delete permanently removes the caller's account together with every
// session they own.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve session identity", http.StatusInternalServerError)
		return
	}

	if err := h.service.DeleteUser(identity.ID); err != nil {
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Failed to delete account")
		http.Error(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
