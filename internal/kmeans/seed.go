package kmeans

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/kmeanslab/distance"
	"gonum.org/v1/gonum/floats"
)

// Seeder produces the k initial centroids of a clustering run.
type Seeder interface {
	Seed(data [][]float64, k int, rng *rand.Rand) ([][]float64, error)
}

// RandomSeeder picks k distinct data points uniformly at random.
type RandomSeeder struct{}

// Seed implements Seeder.
func (RandomSeeder) Seed(data [][]float64, k int, rng *rand.Rand) ([][]float64, error) {
	if err := checkK(data, k); err != nil {
		return nil, err
	}

	perm := rng.Perm(len(data))

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = slices.Clone(data[perm[i]])
	}

	return centroids, nil
}

// FarthestSeeder implements maximin seeding: after a random first pick,
// every next centroid is the point farthest from its nearest chosen
// centroid. Ties go to the first point in data order.
type FarthestSeeder struct{}

// Seed implements Seeder.
func (FarthestSeeder) Seed(data [][]float64, k int, rng *rand.Rand) ([][]float64, error) {
	if err := checkK(data, k); err != nil {
		return nil, err
	}

	centroids := make([][]float64, 0, k)
	centroids = append(centroids, slices.Clone(data[rng.IntN(len(data))]))

	if k == 1 {
		return centroids, nil
	}

	minDist := distance.MinSquaredDistances(data, centroids)

	for len(centroids) < k {
		best := 0
		for i := 1; i < len(minDist); i++ {
			if minDist[i] > minDist[best] {
				best = i
			}
		}

		next := slices.Clone(data[best])
		centroids = append(centroids, next)
		shrink(minDist, data, next)
	}

	return centroids, nil
}

// PlusPlusSeeder implements k-means++ seeding: after a random first pick,
// every next centroid is sampled with probability proportional to the
// squared distance to its nearest chosen centroid.
type PlusPlusSeeder struct{}

// Seed implements Seeder.
func (PlusPlusSeeder) Seed(data [][]float64, k int, rng *rand.Rand) ([][]float64, error) {
	if err := checkK(data, k); err != nil {
		return nil, err
	}

	centroids := make([][]float64, 0, k)
	centroids = append(centroids, slices.Clone(data[rng.IntN(len(data))]))

	if k == 1 {
		return centroids, nil
	}

	minDist := distance.MinSquaredDistances(data, centroids)
	cumulative := make([]float64, len(data))

	for len(centroids) < k {
		total := floats.Sum(minDist)
		if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			return nil, ErrDegenerate
		}

		floats.CumSum(cumulative, minDist)

		idx := sample(cumulative, minDist, rng.Float64()*total)

		next := slices.Clone(data[idx])
		centroids = append(centroids, next)
		shrink(minDist, data, next)
	}

	return centroids, nil
}

// ManualSeeder returns caller supplied centroids verbatim.
type ManualSeeder struct {
	Centroids [][]float64
}

// Seed implements Seeder. The random source is not used.
func (s ManualSeeder) Seed(data [][]float64, k int, _ *rand.Rand) ([][]float64, error) {
	if len(s.Centroids) == 0 {
		return nil, ErrMissingCentroids
	}

	if len(s.Centroids) != k {
		return nil, ErrCentroidCount
	}

	dim := len(data[0])
	for _, c := range s.Centroids {
		if len(c) != dim {
			return nil, ErrCentroidDimension
		}
	}

	return Clone(s.Centroids), nil
}

func checkK(data [][]float64, k int) error {
	if k < 1 || k > len(data) {
		return ErrInvalidK
	}
	return nil
}

// shrink lowers minDist with the squared distances to a new centroid.
func shrink(minDist []float64, data [][]float64, c []float64) {
	for i, p := range data {
		if d := distance.SquaredEuclidean(p, c); d < minDist[i] {
			minDist[i] = d
		}
	}
}

// sample returns the first index whose cumulative weight exceeds target.
// If rounding pushes target past the last cumulative value, the last index
// with a positive weight is returned.
func sample(cumulative, weights []float64, target float64) int {
	for i, c := range cumulative {
		if target < c {
			return i
		}
	}

	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}

	return len(weights) - 1
}
