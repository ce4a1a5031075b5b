package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 string for a new task definition.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id can be used as a definition key. Definitions
// imported from files may use slugs instead of UUIDs.
func IsValidID(id string) bool {
	if _, err := uuid.Parse(id); err == nil {
		return true
	}
	return id != "" && !strings.ContainsAny(id, " \t\r\n,")
}
