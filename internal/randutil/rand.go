// Package randutil provides the randomness source used for token placement
// and shuffling. Fairness here is visual only; nothing requires crypto-grade
// randomness.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// Source produces uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The two 64-bit PCG seeds are derived with a splitmix finaliser so that
// neighbouring seeds still produce unrelated sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed resolves a configured seed. Zero means "pick one from the clock".
func Seed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Pick returns a uniform index in [0, n). Non-positive n yields 0.
func Pick(src Source, n int) int {
	if n <= 1 {
		return 0
	}
	return src.IntN(n)
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
