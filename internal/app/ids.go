package app

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// newClaimToken returns an unguessable token customers use to claim a
// waitlist offer.
func newClaimToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
