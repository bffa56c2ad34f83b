package distance

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Euclidean calculates the L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean calculates the squared L2 distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredEuclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// Nearest returns the index of the centroid closest to p under dist and the
// distance to it. Ties resolve to the smallest index, so a point whose
// distances all overflow to +Inf is labelled 0.
// Returns -1 if centroids is empty.
func Nearest(p []float64, centroids [][]float64, dist Func) (int, float64) {
	if len(centroids) == 0 {
		return -1, math.Inf(1)
	}

	best, minDist := 0, dist(p, centroids[0])

	for j := 1; j < len(centroids); j++ {
		if d := dist(p, centroids[j]); d < minDist {
			minDist = d
			best = j
		}
	}

	return best, minDist
}

// MinSquaredDistances returns, for every point, the squared distance to its
// nearest vector in chosen. Returns nil if chosen is empty.
func MinSquaredDistances(points, chosen [][]float64) []float64 {
	if len(chosen) == 0 {
		return nil
	}

	out := make([]float64, len(points))
	for i, p := range points {
		_, out[i] = Nearest(p, chosen, SquaredEuclidean)
	}

	return out
}
