// Package distance provides the Euclidean distance kernels used for
// cluster assignment and seeding.
//
// All kernels delegate to gonum's floats package and operate on float64
// vectors of equal length (caller's responsibility).
//
// # Usage
//
//	d := distance.Euclidean(a, b)
//	d2 := distance.SquaredEuclidean(a, b)
//	i, d := distance.Nearest(p, centroids)
package distance
