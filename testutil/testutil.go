package testutil

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/kmeanslab/dataset"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: newRand(seed),
		seed: seed,
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = newRand(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Uniform generates n points with coordinates in range [low, high).
func (r *RNG) Uniform(n, dim int, low, high float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dataset.Uniform(r.rand, n, dim, low, high)
}

// Blobs generates n points clustered around centers random centers.
func (r *RNG) Blobs(n, dim, centers int, spread float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dataset.Blobs(r.rand, n, dim, centers, spread)
}

// Duplicates returns n copies of p.
func Duplicates(n int, p []float64) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		points[i] = append([]float64(nil), p...)
	}
	return points
}

// ExactLabels labels every point with the index of its nearest centroid by
// brute force. Ties go to the lower index.
func ExactLabels(points, centroids [][]float64) []int {
	labels := make([]int, len(points))

	for i, p := range points {
		best := math.Inf(1)
		for j, c := range centroids {
			var d float64
			for k := range p {
				diff := p[k] - c[k]
				d += diff * diff
			}
			if d < best {
				best = d
				labels[i] = j
			}
		}
	}

	return labels
}
