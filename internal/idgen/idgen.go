// Package idgen produces opaque, unique message identifiers for durable
// backends that do not assign ids themselves (the memory backend).
package idgen

import "github.com/google/uuid"

// Generator produces an opaque unique id string.
type Generator interface {
	NewID() string
}

// UUID generates ids using RFC 4122 version 4 UUIDs.
type UUID struct{}

// NewID returns a new random UUID string.
func (UUID) NewID() string {
	return uuid.NewString()
}
