package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gkasar/healthdash-be/internal/auth"
	"github.com/gkasar/healthdash-be/internal/services"
)

// AuthHandler handles registration, login, logout and session lookup.
type AuthHandler struct {
	service    services.IdentityServiceProvider
	sessionTTL time.Duration
}

// NewAuthHandler creates a new AuthHandler. sessionTTL is only used for
// the cookie lifetime; the authoritative expiry lives in the store.
func NewAuthHandler(service services.IdentityServiceProvider, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{service: service, sessionTTL: sessionTTL}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests. Identifier is a
// username or an email.
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Username == "" || payload.Email == "" || payload.Password == "" {
		http.Error(w, "Username, email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(payload.Username, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateIdentity) {
			http.Error(w, "Username or email already exists", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login handles authentication and session issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	identity, err := h.service.Authenticate(payload.Identifier, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("identifier", payload.Identifier).Msg("Failed authentication attempt")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Str("identifier", payload.Identifier).Msg("Authentication error")
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	token, err := h.service.CreateSession(identity.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Failed to create session")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	// Set Secure flag based on environment.
	isProd := os.Getenv("APP_ENV") == "production"

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(h.sessionTTL),
		HttpOnly: true,
		Secure:   isProd,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token": token,
		"user":  identity,
	})
}

// Logout revokes the presented session token. Idempotent: logging out an
// unknown or already-revoked token still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token != "" {
		if err := h.service.DeleteSession(token); err != nil {
			log.Error().Err(err).Msg("Failed to delete session")
			http.Error(w, "Failed to log out", http.StatusInternalServerError)
			return
		}
	}

	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the identity of the currently authenticated caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve identity from context")
		http.Error(w, "Could not retrieve session identity", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identity)
}

// clearSessionCookie expires the session cookie on the client.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
}
