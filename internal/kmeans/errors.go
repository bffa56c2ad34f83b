package kmeans

import "errors"

var (
	// ErrInvalidK is returned when k is not in [1, len(data)].
	ErrInvalidK = errors.New("kmeans: k must be between 1 and the number of points")

	// ErrDegenerate is returned by k-means++ seeding when every remaining
	// point coincides with an already chosen centroid.
	ErrDegenerate = errors.New("kmeans: all squared distances are zero")

	// ErrMissingCentroids is returned when manual seeding has no centroids.
	ErrMissingCentroids = errors.New("kmeans: manual seeding requires initial centroids")

	// ErrCentroidCount is returned when the number of manual centroids differs from k.
	ErrCentroidCount = errors.New("kmeans: centroid count does not match k")

	// ErrCentroidDimension is returned when a manual centroid has the wrong dimension.
	ErrCentroidDimension = errors.New("kmeans: centroid dimension does not match data")
)
