// Package random provides seeded generators for simulation jitter.
package random

import (
	"hash/fnv"
	"math/rand"
)

// DefaultSeed seeds generators when no seed is configured.
const DefaultSeed = "navbridge"

// SeedValue derives a stable, non-zero seed from a root seed and a label so
// that independent consumers do not share a sequence.
func SeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// New returns a generator seeded from rootSeed and label.
func New(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	return rand.New(rand.NewSource(SeedValue(rootSeed, label)))
}

// Float returns a value in [0, 1). A nil rng falls back to a fixed default
// sequence.
func Float(rng *rand.Rand) float64 {
	if rng == nil {
		rng = New(DefaultSeed, "fallback")
	}
	return rng.Float64()
}

// Between returns a uniformly distributed value in [lo, hi]. When hi <= lo it
// returns lo.
func Between(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + Float(rng)*(hi-lo)
}
