package kmeans

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/kmeanslab/distance"
	"gonum.org/v1/gonum/floats"
)

// Default tolerances of the convergence test.
const (
	DefaultAbsTol = 1e-8
	DefaultRelTol = 1e-5
)

// Assign labels every point with the index of its nearest centroid
// (Euclidean distance, ties to the smallest index).
//
// labels is reused if it has the right length, otherwise a new slice is
// allocated.
func Assign(data, centroids [][]float64, labels []int) []int {
	if len(labels) != len(data) {
		labels = make([]int, len(data))
	}

	for i, p := range data {
		labels[i], _ = distance.Nearest(p, centroids, distance.Euclidean)
	}

	return labels
}

// Update computes k new centroids as the per-dimension mean of the points
// carrying each label. Every point is scaled by 1/count before it is
// added, so the mean of finite points stays finite.
//
// A cluster without points is reseeded with a uniformly random data point;
// the indices of reseeded clusters are returned in ascending order.
func Update(data [][]float64, labels []int, k int, rng *rand.Rand) ([][]float64, []int) {
	dim := len(data[0])

	centroids := make([][]float64, k)
	for j := range centroids {
		centroids[j] = make([]float64, dim)
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	for i, p := range data {
		l := labels[i]
		floats.AddScaled(centroids[l], 1/float64(counts[l]), p)
	}

	var reseeded []int

	for j := 0; j < k; j++ {
		if counts[j] > 0 {
			clampFinite(centroids[j])
			continue
		}

		copy(centroids[j], data[rng.IntN(len(data))])
		reseeded = append(reseeded, j)
	}

	return centroids, reseeded
}

// clampFinite pulls coordinates that rounding pushed past the float64
// range back to ±MaxFloat64.
func clampFinite(v []float64) {
	for i, x := range v {
		if math.IsInf(x, 0) {
			v[i] = math.Copysign(math.MaxFloat64, x)
		}
	}
}

// AllClose reports whether a and b have the same shape and every pair of
// coordinates satisfies |a-b| <= absTol + relTol*|b|.
func AllClose(a, b [][]float64, absTol, relTol float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}

		for j := range a[i] {
			x, y := a[i][j], b[i][j]
			if x != y && !(math.Abs(x-y) <= absTol+relTol*math.Abs(y)) {
				return false
			}
		}
	}

	return true
}

// Inertia returns the sum of squared distances of every point to the
// centroid of its label.
func Inertia(data, centroids [][]float64, labels []int) float64 {
	var s float64
	for i, p := range data {
		s += distance.SquaredEuclidean(p, centroids[labels[i]])
	}
	return s
}

// Clone returns a deep copy of a matrix.
func Clone(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}

	out := make([][]float64, len(m))
	for i := range m {
		out[i] = slices.Clone(m[i])
	}

	return out
}
