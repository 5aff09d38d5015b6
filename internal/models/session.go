package models

import "time"

// Session represents one live login. The token is the only credential a
// caller holds after authenticating; a user may own any number of
// concurrent sessions.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	SessionToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
