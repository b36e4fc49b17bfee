package core

import "github.com/google/uuid"

// NewID returns an 8-character opaque identifier.
func NewID() string {
	return uuid.NewString()[:8]
}
