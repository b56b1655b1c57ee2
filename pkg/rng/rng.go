// Package rng provides the injectable PRNG the coreset tree draws its
// random sampling decisions from (spec.md §1, §9: "make the RNG an
// injected interface ... do not embed the generator as a process-wide
// mutable singleton"). Grounded on pkg/dedup/kmeans.go's Engine, which
// already carries a seeded *rand.Rand field instead of reaching for the
// package-level math/rand functions.
package rng

import (
	"math/rand"
	"time"
)

// Source supplies the two primitives the coreset tree needs: a uniform
// integer in [0, n) and a uniform real in (0, 1).
type Source interface {
	// Int31n returns a uniform integer in [0, n). Panics if n <= 0.
	Int31n(n int32) int32

	// Float64Open01 returns a uniform real strictly between 0 and 1.
	Float64Open01() float64
}

// mathRandSource adapts *rand.Rand to the Source interface.
type mathRandSource struct {
	r *rand.Rand
}

// New returns a Source seeded from the process clock, suitable for
// production use.
func New() Source {
	return &mathRandSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Seeded returns a deterministic Source for tests: identical seeds
// produce identical draw sequences (spec.md §8's bitwise-identical
// repeat-run property).
func Seeded(seed int64) Source {
	return &mathRandSource{r: rand.New(rand.NewSource(seed))}
}

func (s *mathRandSource) Int31n(n int32) int32 {
	return s.r.Int31n(n)
}

// Float64Open01 draws from (0,1), re-rolling on the boundary case where
// math/rand.Float64 returns exactly 0; the upper bound is already open
// since rand.Float64 never returns 1.
func (s *mathRandSource) Float64Open01() float64 {
	v := s.r.Float64()
	for v == 0 {
		v = s.r.Float64()
	}
	return v
}
