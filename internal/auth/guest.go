package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GuestKeyPrefix marks guest identifiers so they are recognizable in the
// message store's email column.
const GuestKeyPrefix = "guest_"

// NewGuestKey returns an opaque random guest identifier. It confers no
// privileges and is used only as a rate-limiting key.
func NewGuestKey() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate guest key: %w", err)
	}
	return GuestKeyPrefix + hex.EncodeToString(b), nil
}
