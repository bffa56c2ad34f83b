// Package kmeans implements the building blocks of Lloyd's k-means algorithm.
//
// It provides the pure assignment and update steps, the convergence test and
// the centroid seeding strategies (random, farthest-point, k-means++ and
// manual). All randomness is drawn from a caller-supplied *rand.Rand so a
// clustering session can be replayed from its seed.
package kmeans
