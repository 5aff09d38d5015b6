package services

import (
	"crypto/rand"
	"encoding/hex"
)

// sessionTokenBytes is the entropy of a session token before hex encoding.
// 32 bytes keeps tokens unguessable even to an attacker who knows the
// approximate login time.
const sessionTokenBytes = 32

// newSessionToken generates an opaque bearer token from the CSPRNG.
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
