package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gkasar/healthdash-be/internal/models"
)

// SessionValidator resolves an opaque session token to an identity.
// A nil identity with a nil error means "not authenticated".
type SessionValidator interface {
	ValidateSession(token string) (*models.Identity, error)
}

// SessionCookieName is the cookie the login handler sets and the
// middleware falls back to when no Authorization header is present.
const SessionCookieName = "session_token"

// IdentityKey is the context key for the authenticated identity.
type contextKey string

const IdentityKey = contextKey("identity")

// TokenFromRequest extracts the session token from the Authorization
// header (Bearer scheme) or, failing that, the session cookie. Returns
// the empty string when the request carries no token.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, "Bearer ")
		if len(parts) == 2 {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// IdentityFromContext retrieves the authenticated identity placed in the
// context by SessionMiddleware.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	return identity, ok
}

// SessionMiddleware creates a middleware that rejects requests without a
// valid, unexpired session token and passes the owning identity down via
// the request context.
func SessionMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, "Missing session token", http.StatusUnauthorized)
				return
			}

			identity, err := validator.ValidateSession(token)
			if err != nil {
				log.Error().Err(err).Msg("Session validation failed")
				http.Error(w, "Could not validate session", http.StatusInternalServerError)
				return
			}
			if identity == nil {
				// Unknown, revoked or expired token. Not an error, just
				// not authenticated.
				http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
