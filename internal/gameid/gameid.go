// Package gameid generates identifiers for game sessions: a UUIDv7 written
// as 26 lowercase Crockford base32 characters, so IDs sort by creation time.
package gameid

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet, lowercased.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generate returns a new session ID.
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system random source does.
		id = uuid.New()
	}
	return Encode(id)
}

// Encode writes id in the session ID form.
func Encode(id uuid.UUID) string {
	return encoding.EncodeToString(id[:])
}

// Parse decodes a session ID back into its UUID.
func Parse(s string) (uuid.UUID, error) {
	if err := Validate(s); err != nil {
		return uuid.Nil, err
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("game ID %q: %w", s, err)
	}
	return uuid.FromBytes(b)
}

// Validate checks that s is 26 characters drawn from the ID alphabet.
func Validate(s string) error {
	if len(s) != 26 {
		return fmt.Errorf("game ID must be exactly 26 characters, got %d", len(s))
	}
	for i, c := range s {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
