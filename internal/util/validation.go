package util

import "github.com/google/uuid"

// IsValidUUID accepts only the canonical lowercase hyphenated form that
// Postgres emits, so ids round-trip byte for byte.
func IsValidUUID(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.String() == s
}
