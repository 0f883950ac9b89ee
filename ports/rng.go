package ports

import (
	"context"
)

// RandomStream is one deterministic sequence of random draws. A stream is not safe
// for concurrent use; each iteration of a simulation owns its own stream.
type RandomStream interface {
	// Uint32 returns the next raw engine word
	Uint32() uint32

	// UniformInt returns an unbiased integer in [lo, hi]
	UniformInt(lo, hi uint64) uint64

	// ShuffleInts applies a uniformly random permutation to a in place
	ShuffleInts(a []int)

	// Normal returns a standard normal draw. Draws are produced in pairs and the
	// second of each pair is cached on the stream.
	Normal() float64
}

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (RandomStream, error)

	// ValidateSeed checks that the first normal draws of a seeded stream match expected
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
