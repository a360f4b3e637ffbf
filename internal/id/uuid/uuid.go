// Package uuid generates cycle and report identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 strings, so report IDs sort by
// creation time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string, or a random UUIDv4 if the v7 source fails.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err == nil {
		return id.String(), nil
	}
	fallback, fbErr := uuid.NewRandom()
	if fbErr != nil {
		return "", fmt.Errorf("generate uuid: v7: %v, v4: %w", err, fbErr)
	}
	return fallback.String(), nil
}
