package kmeanslab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/kmeanslab/internal/kmeans"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
		kind Kind
	}{
		{"InvalidK", kmeans.ErrInvalidK, ErrInvalidK, KindConfiguration},
		{"Missing", kmeans.ErrMissingCentroids, ErrMissingCentroids, KindConfiguration},
		{"Count", kmeans.ErrCentroidCount, ErrMalformedCentroids, KindConfiguration},
		{"Dimension", kmeans.ErrCentroidDimension, ErrMalformedCentroids, KindConfiguration},
		{"Degenerate", kmeans.ErrDegenerate, ErrDegenerateDistribution, KindRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError("initialize", tt.in)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.in)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	assert.NoError(t, translateError("op", nil))

	other := errors.New("boom")
	assert.Equal(t, KindUnknown, KindOf(translateError("op", other)))

	already := runtimeError("step", ErrNotInitialized)
	assert.Same(t, already, translateError("run", already))
}

func TestError_Message(t *testing.T) {
	err := configError("initialize", ErrEmptyDataset)

	assert.Equal(t, "initialize: configuration error: dataset is empty", err.Error())
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestDimensionMismatchError(t *testing.T) {
	err := error(&DimensionMismatchError{Index: 3, Expected: 2, Actual: 5})

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, "dimension mismatch at index 3: expected 2, got 5", err.Error())
}
