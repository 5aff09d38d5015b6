package services

import "errors"

// Domain errors callers can branch on with errors.Is. Anything else coming
// out of the service layer is a wrapped storage error.
var (
	// ErrDuplicateIdentity is returned when a username or email is already
	// taken by another user.
	ErrDuplicateIdentity = errors.New("username or email already exists")

	// ErrInvalidCredentials is returned for any failed authentication.
	// It deliberately does not distinguish an unknown identifier from a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid username/email or password")
)
