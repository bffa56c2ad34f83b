// Package testutil provides testing utilities for kmeanslab.
//
// This package is intended for use in tests and benchmarks only.
// It provides a thread-safe seeded random source, point set generators and
// a brute-force reference for nearest-centroid labelling.
//
// # Random Points
//
//	rng := testutil.NewRNG(seed)
//	points := rng.Uniform(300, 2, -10, 10)
//	blobs := rng.Blobs(200, 2, 4, 0.5)
//
// # Reference Labels
//
//	want := testutil.ExactLabels(points, centroids)
package testutil
