package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewUserID returns a random UUID. User ids double as the WebAuthn user
// handle, so they must not leak creation time the way a ULID does.
func NewUserID() string {
	return uuid.NewString()
}

// UserHandle converts a user id to the opaque bytes handed to authenticators.
func UserHandle(userID string) []byte {
	if u, err := uuid.Parse(userID); err == nil {
		b := u
		return b[:]
	}
	return []byte(userID)
}

// UserIDFromHandle reverses UserHandle.
func UserIDFromHandle(handle []byte) string {
	if u, err := uuid.FromBytes(handle); err == nil {
		return u.String()
	}
	return string(handle)
}
