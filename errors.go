package kmeanslab

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kmeanslab/internal/kmeans"
)

// Kind classifies engine errors.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindConfiguration marks invalid caller input: k, iteration cap,
	// initialization method, manual centroids or the dataset.
	KindConfiguration
	// KindRuntime marks operations that cannot proceed in the current
	// numeric or lifecycle state.
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidK is returned when k is not in [1, number of points].
	ErrInvalidK = errors.New("k must be between 1 and the number of points")

	// ErrInvalidMaxIter is returned when the iteration cap is not positive.
	ErrInvalidMaxIter = errors.New("max iterations must be positive")

	// ErrUnknownInitMethod is returned for an unrecognized initialization method.
	ErrUnknownInitMethod = errors.New("unknown initialization method")

	// ErrMissingCentroids is returned when manual initialization has no centroids.
	ErrMissingCentroids = errors.New("initial centroids must be provided for manual initialization")

	// ErrMalformedCentroids is returned when manual centroids do not match k or the data dimension.
	ErrMalformedCentroids = errors.New("malformed initial centroids")

	// ErrEmptyDataset is returned when no data points are supplied.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNonFinite is returned when a coordinate is NaN or infinite.
	ErrNonFinite = errors.New("coordinates must be finite")

	// ErrDegenerateDistribution is returned when k-means++ sampling finds
	// every point on an already chosen centroid.
	ErrDegenerateDistribution = errors.New("k-means++ sampling distribution is degenerate: all distances are zero")

	// ErrNotInitialized is returned when step, run or predict is called
	// before a successful initialize.
	ErrNotInitialized = errors.New("session is not initialized")
)

// Error is the error type returned by Session operations.
type Error struct {
	// Op is the operation that failed ("initialize", "step", ...).
	Op string
	// Kind classifies the failure.
	Kind Kind
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DimensionMismatchError indicates a vector whose dimensionality differs
// from the dataset's.
type DimensionMismatchError struct {
	Index    int
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch at index %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

func configError(op string, err error) error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

func runtimeError(op string, err error) error {
	return &Error{Op: op, Kind: KindRuntime, Err: err}
}

// translateError maps errors of the internal algorithm package onto the
// public sentinels and kinds.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, kmeans.ErrInvalidK):
		return configError(op, fmt.Errorf("%w: %w", ErrInvalidK, err))
	case errors.Is(err, kmeans.ErrMissingCentroids):
		return configError(op, fmt.Errorf("%w: %w", ErrMissingCentroids, err))
	case errors.Is(err, kmeans.ErrCentroidCount), errors.Is(err, kmeans.ErrCentroidDimension):
		return configError(op, fmt.Errorf("%w: %w", ErrMalformedCentroids, err))
	case errors.Is(err, kmeans.ErrDegenerate):
		return runtimeError(op, fmt.Errorf("%w: %w", ErrDegenerateDistribution, err))
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return &Error{Op: op, Kind: KindUnknown, Err: err}
}
