// Package sampling provides the seeded random source used by generation
// strategies, and the deterministic derivation of per-day seeds from a
// master seed.
//
// Every Sampler is backed by a math/rand/v2 PCG source, whose output
// sequence is documented as stable. Two samplers built from the same Seed
// produce identical draws on every platform and Go release.
package sampling

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws values for one day (or one file) of a run.
// A Sampler is not safe for concurrent use; each worker owns its own.
type Sampler struct {
	master uint64
	src    *rand.PCG
	rng    *rand.Rand
}

// New creates a sampler from a derived seed. master is the run's master
// seed, kept so file-keyed samplers can be derived later.
func New(master uint64, seed Seed) *Sampler {
	src := rand.NewPCG(seed.Hi, seed.Lo)
	return &Sampler{
		master: master,
		src:    src,
		rng:    rand.New(src),
	}
}

// ForDay returns the sampler of day dayIdx.
func ForDay(master uint64, dayIdx int) *Sampler {
	return New(master, DaySeed(master, dayIdx))
}

// ForFile returns a sampler bound to file f of the same run.
func (s *Sampler) ForFile(f int64) *Sampler {
	return New(s.master, FileSeed(s.master, f))
}

// Master returns the run's master seed.
func (s *Sampler) Master() uint64 {
	return s.master
}

// IntN returns a uniform int in [0, n). Panics if n <= 0.
func (s *Sampler) IntN(n int) int {
	return s.rng.IntN(n)
}

// Float64 returns a uniform float in [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}

// Bernoulli reports true with probability p.
func (s *Sampler) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

// UniformInt returns a uniform integer in [lo, hi]. lo == hi yields lo.
func (s *Sampler) UniformInt(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Int64N(hi-lo+1)
}

// Poisson draws from a Poisson distribution with rate lambda.
// A non-positive lambda yields 0.
func (s *Sampler) Poisson(lambda float64) int64 {
	if lambda <= 0 {
		return 0
	}
	d := distuv.Poisson{Lambda: lambda, Src: s.src}
	return int64(math.Round(d.Rand()))
}

// Perm returns a pseudo-random permutation of [0, n).
func (s *Sampler) Perm(n int) []int {
	return s.rng.Perm(n)
}

// Weighted selects indices proportionally to a fixed set of weights.
// Build it once per day and draw many times: each draw is O(log n).
type Weighted struct {
	cum   []float64
	total float64
}

// NewWeighted prepares weighted selection. Negative weights count as zero.
func NewWeighted(weights []float64) *Weighted {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		cum[i] = total
	}
	return &Weighted{cum: cum, total: total}
}

// Len returns the number of candidates.
func (w *Weighted) Len() int {
	return len(w.cum)
}

// Empty reports whether no candidate can be drawn.
func (w *Weighted) Empty() bool {
	return len(w.cum) == 0 || w.total <= 0
}

// Draw returns a candidate index. The caller must check Empty first.
func (w *Weighted) Draw(s *Sampler) int {
	x := s.rng.Float64() * w.total
	i := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] > x })
	if i >= len(w.cum) {
		i = len(w.cum) - 1
	}
	return i
}
