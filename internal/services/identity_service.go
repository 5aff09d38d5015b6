package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/gkasar/healthdash-be/internal/models"
)

// IdentityServiceProvider defines the interface for the identity store.
// It is the sole owner of user records and session tokens, and the sole
// arbiter of whether a caller is authenticated.
type IdentityServiceProvider interface {
	Register(username, email, password string) (models.User, error)
	Authenticate(identifier, password string) (models.Identity, error)
	CreateSession(userID string) (string, error)
	ValidateSession(token string) (*models.Identity, error)
	DeleteSession(token string) error
	UpdatePassword(userID, newPassword string) error
	UpdateEmail(userID, newEmail string) error
	DeleteUser(userID string) error
	DeleteExpiredSessions() (int64, error)
}

// IdentityService provides credential storage, authentication and session
// management on top of the shared database handle.
type IdentityService struct {
	db         *sql.DB
	sessionTTL time.Duration
}

// NewIdentityService creates a new IdentityService. sessionTTL is the
// lifetime of every issued session token.
func NewIdentityService(db *sql.DB, sessionTTL time.Duration) *IdentityService {
	return &IdentityService{db: db, sessionTTL: sessionTTL}
}

// Register creates a new user with a bcrypt-hashed password. The uniqueness
// pre-check and the insert run in one transaction; the UNIQUE constraints on
// username and email act as a backstop against concurrent registrations that
// both pass the pre-check.
func (s *IdentityService) Register(username, email, password string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.User{}, fmt.Errorf("begin registration: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRow("SELECT id FROM users WHERE username = ? OR email = ?", username, email).Scan(&existingID)
	if err == nil {
		return models.User{}, ErrDuplicateIdentity
	}
	if err != sql.ErrNoRows {
		return models.User{}, fmt.Errorf("check existing user: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.Exec(
		"INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit registration: %w", err)
	}

	// Don't hand the hash back to callers
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies credentials. The identifier matches either the
// username or the email. On success the user's last_login is updated
// best-effort; a failed timestamp update never fails the authentication.
func (s *IdentityService) Authenticate(identifier, password string) (models.Identity, error) {
	var user models.User
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash FROM users WHERE username = ? OR email = ?",
		identifier, identifier,
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash)
	if err == sql.ErrNoRows {
		return models.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.Identity{}, ErrInvalidCredentials
	}

	if _, err := s.db.Exec("UPDATE users SET last_login = ? WHERE id = ?", time.Now().UTC(), user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to update last_login")
	}

	return user.Identity(), nil
}

// CreateSession issues a new opaque session token for the given user,
// valid for the configured TTL.
func (s *IdentityService) CreateSession(userID string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := models.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		SessionToken: token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
	}

	_, err = s.db.Exec(
		"INSERT INTO user_sessions (id, user_id, session_token, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserID, session.SessionToken, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return session.SessionToken, nil
}

// ValidateSession resolves a token to the owning user's identity. An
// unknown or expired token returns (nil, nil) — "not authenticated" is a
// normal outcome, not an error. Expiry is checked lazily here; no sweeper
// is needed for correctness.
func (s *IdentityService) ValidateSession(token string) (*models.Identity, error) {
	var identity models.Identity
	var expiresAt time.Time
	row := s.db.QueryRow(`
		SELECT u.id, u.username, u.email, s.expires_at
		FROM users u
		JOIN user_sessions s ON u.id = s.user_id
		WHERE s.session_token = ?`, token)
	err := row.Scan(&identity.ID, &identity.Username, &identity.Email, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if !expiresAt.After(time.Now().UTC()) {
		return nil, nil
	}
	return &identity, nil
}

// DeleteSession revokes a session token. Idempotent: deleting an unknown
// or already-expired token is not an error.
func (s *IdentityService) DeleteSession(token string) error {
	if _, err := s.db.Exec("DELETE FROM user_sessions WHERE session_token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// UpdatePassword re-hashes and overwrites the user's password. Existing
// sessions stay valid; revocation on credential change is left to callers.
func (s *IdentityService) UpdatePassword(userID, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	res, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update password: no user with id %s", userID)
	}
	return nil
}

// UpdateEmail changes the user's email, enforcing the same uniqueness
// invariant as registration scoped to exclude the user's own row.
func (s *IdentityService) UpdateEmail(userID, newEmail string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin email update: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRow("SELECT id FROM users WHERE email = ? AND id != ?", newEmail, userID).Scan(&existingID)
	if err == nil {
		return ErrDuplicateIdentity
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check existing email: %w", err)
	}

	res, err := tx.Exec("UPDATE users SET email = ? WHERE id = ?", newEmail, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("update email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update email: no user with id %s", userID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit email update: %w", err)
	}
	return nil
}

// DeleteUser removes the user and all sessions they own as one unit of
// work. Either both are removed or neither is.
func (s *IdentityService) DeleteUser(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin user deletion: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM user_sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user deletion: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes session rows past their expiry and reports
// how many were swept. Validation re-checks expiry at read time, so this is
// storage hygiene only.
func (s *IdentityService) DeleteExpiredSessions() (int64, error) {
	res, err := s.db.Exec("DELETE FROM user_sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The modernc driver exposes no typed error for this, so match on
// the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
