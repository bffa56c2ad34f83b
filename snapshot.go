package kmeanslab

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/kmeanslab/internal/kmeans"
)

// Snapshot is the complete current state of a Session as a plain value.
// It captures no history: only what Restore needs to continue the session.
type Snapshot struct {
	Seed       uint64      `json:"seed"`
	State      State       `json:"state"`
	Config     Config      `json:"config"`
	Iterations int         `json:"iterations"`
	Data       [][]float64 `json:"data,omitempty"`
	Centroids  [][]float64 `json:"centroids,omitempty"`
	Labels     []int       `json:"labels,omitempty"`
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Seed:       s.opts.seed,
		State:      s.state,
		Config:     s.cfg,
		Iterations: s.iterations,
		Data:       kmeans.Clone(s.data),
		Centroids:  kmeans.Clone(s.centroids),
		Labels:     slices.Clone(s.labels),
	}
}

// Restore creates a session from a snapshot.
//
// The random source is seeded with snap.Seed unless WithSeed is passed.
// The snapshot is validated with the same rules as Initialize plus the
// consistency of centroids and labels.
func Restore(snap Snapshot, optFns ...Option) (*Session, error) {
	s := NewSession(append([]Option{WithSeed(snap.Seed)}, optFns...)...)

	if snap.State == StateUninitialized {
		return s, nil
	}

	if err := validateSnapshot(snap); err != nil {
		return nil, configError("restore", err)
	}

	s.state = snap.State
	s.cfg = snap.Config.withDefaults()
	s.iterations = snap.Iterations
	s.data = kmeans.Clone(snap.Data)
	s.centroids = kmeans.Clone(snap.Centroids)
	s.labels = slices.Clone(snap.Labels)

	return s, nil
}

func validateSnapshot(snap Snapshot) error {
	if snap.State < StateUninitialized || snap.State > StateConverged {
		return fmt.Errorf("invalid state %d", int(snap.State))
	}

	if err := validateDataset(snap.Data); err != nil {
		return err
	}

	cfg := snap.Config
	if cfg.MaxIter <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxIter, cfg.MaxIter)
	}

	if cfg.K < 1 || cfg.K > len(snap.Data) {
		return fmt.Errorf("%w: k=%d, points=%d", ErrInvalidK, cfg.K, len(snap.Data))
	}

	if cfg.Init < InitRandom || cfg.Init > InitManual {
		return fmt.Errorf("%w: %d", ErrUnknownInitMethod, int(cfg.Init))
	}

	if len(snap.Centroids) != cfg.K {
		return fmt.Errorf("%w: %d centroids for k=%d", ErrMalformedCentroids, len(snap.Centroids), cfg.K)
	}

	dim := len(snap.Data[0])
	for i, c := range snap.Centroids {
		if len(c) != dim {
			return &DimensionMismatchError{Index: i, Expected: dim, Actual: len(c)}
		}
	}

	if err := validateFinite(snap.Centroids); err != nil {
		return err
	}

	if snap.State == StateInitialized {
		if len(snap.Labels) != 0 {
			return errors.New("labels present before the first step")
		}
		return nil
	}

	if len(snap.Labels) != len(snap.Data) {
		return fmt.Errorf("%d labels for %d points", len(snap.Labels), len(snap.Data))
	}

	for i, l := range snap.Labels {
		if l < 0 || l >= cfg.K {
			return fmt.Errorf("label %d of point %d out of range", l, i)
		}
	}

	return nil
}
