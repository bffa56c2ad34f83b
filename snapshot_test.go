package kmeanslab

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeanslab/testutil"
)

func TestSnapshot_RestoreContinues(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(21).Blobs(120, 2, 3, 0.8)

	s := initialized(t, Config{K: 3, Init: InitFarthest, MaxIter: 100}, data, nil)
	_, err := s.Step(ctx)
	require.NoError(t, err)

	snap := s.Snapshot()

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, snap, decoded)

	restored, err := Restore(decoded)
	require.NoError(t, err)

	assert.Equal(t, s.State(), restored.State())
	assert.Equal(t, s.Config(), restored.Config())
	assert.Equal(t, s.Iterations(), restored.Iterations())
	assert.Equal(t, s.Seed(), restored.Seed())

	// No cluster of well separated blobs goes empty, so both sessions
	// evolve without drawing randomness.
	want, err := s.Run(ctx)
	require.NoError(t, err)
	got, err := restored.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestSnapshot_Uninitialized(t *testing.T) {
	s := NewSession(WithSeed(9))

	restored, err := Restore(s.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, StateUninitialized, restored.State())
	assert.Equal(t, uint64(9), restored.Seed())
}

func TestSnapshot_RestoreValidation(t *testing.T) {
	valid := func() Snapshot {
		return Snapshot{
			Seed:       1,
			State:      StateStepping,
			Config:     Config{K: 2, Init: InitRandom, MaxIter: 10},
			Iterations: 1,
			Data:       fourPoints(),
			Centroids:  [][]float64{{0, 0.5}, {10, 0.5}},
			Labels:     []int{0, 0, 1, 1},
		}
	}

	_, err := Restore(valid())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		want   error
	}{
		{"EmptyData", func(s *Snapshot) { s.Data = nil }, ErrEmptyDataset},
		{"MaxIter", func(s *Snapshot) { s.Config.MaxIter = 0 }, ErrInvalidMaxIter},
		{"K", func(s *Snapshot) { s.Config.K = 5 }, ErrInvalidK},
		{"Init", func(s *Snapshot) { s.Config.Init = InitMethod(-1) }, ErrUnknownInitMethod},
		{"CentroidCount", func(s *Snapshot) { s.Centroids = s.Centroids[:1] }, ErrMalformedCentroids},
		{"CentroidDimension", func(s *Snapshot) { s.Centroids[1] = []float64{1} }, ErrDimensionMismatch},
		{"LabelCount", func(s *Snapshot) { s.Labels = s.Labels[:2] }, nil},
		{"LabelRange", func(s *Snapshot) { s.Labels[0] = 2 }, nil},
		{"InitializedWithLabels", func(s *Snapshot) { s.State = StateInitialized }, nil},
		{"State", func(s *Snapshot) { s.State = State(8) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := valid()
			tt.mutate(&snap)

			_, err := Restore(snap)
			require.Error(t, err)
			assert.Equal(t, KindConfiguration, KindOf(err))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
