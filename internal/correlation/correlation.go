// Package correlation mints the per-request identifiers that thread audit
// records and log lines together.
package correlation

import "github.com/google/uuid"

// Generator produces random (version 4) UUIDs in 8-4-4-4-12 form.
// The zero value is ready to use and safe for concurrent use.
type Generator struct{}

// NewID returns a new correlation id.
func (Generator) NewID() string {
	return uuid.NewString()
}

// NewID returns a new correlation id using the default generator.
func NewID() string {
	return Generator{}.NewID()
}
