// Package idgen provides the default, uniqueness-guaranteed entity id
// generator, wired as a collection descriptor's implicit IDGenerator
// when none is named.
package idgen

import "github.com/google/uuid"

// Default returns a new random UUID string. google/uuid's Version 4
// generator draws from crypto/rand, giving the uniqueness guarantee
// without requiring a central counter.
func Default() string {
	return uuid.NewString()
}

// Generator is the function shape a plugin.CustomIDGenerator and the
// built-in default share.
type Generator func() string

// DefaultGenerator is the Generator value collections use when no
// Descriptor.IDGenerator is named.
var DefaultGenerator Generator = Default
