package kmeanslab

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/kmeanslab/internal/kmeans"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateUninitialized is the state of a new or reset session.
	StateUninitialized State = iota
	// StateInitialized means centroids are seeded and no step ran yet.
	StateInitialized
	// StateStepping means at least one step ran without converging.
	StateStepping
	// StateConverged is terminal: the last step left the centroids unchanged.
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStepping:
		return "stepping"
	case StateConverged:
		return "converged"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if s < StateUninitialized || s > StateConverged {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for v := StateUninitialized; v <= StateConverged; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("invalid state %q", text)
}

// StepResult is the outcome of a single assign/update cycle.
type StepResult struct {
	// Centroids are the centroids after the update.
	Centroids [][]float64
	// Labels are the assignments computed from the centroids before the update.
	Labels []int
	// Converged reports that the update left every centroid unchanged
	// within tolerance.
	Converged bool
	// Iteration is the number of cycles the session has completed.
	Iteration int
	// Reseeded lists clusters that were empty and got a random data point.
	Reseeded []int
}

// RunResult is the outcome of Run.
type RunResult struct {
	Centroids [][]float64
	Labels    []int
	// Iterations is the number of cycles performed by this call.
	Iterations int
	// Converged is true only if a cycle actually converged.
	Converged bool
	// CapReached is true if Run stopped at MaxIter without converging.
	CapReached bool
}

// Session is a steppable k-means clustering session.
//
// A Session owns its dataset, centroids, labels, configuration and random
// source. It performs no internal synchronization: callers that share a
// session between goroutines must serialize access.
type Session struct {
	opts options
	rng  *rand.Rand

	state      State
	cfg        Config
	data       [][]float64
	centroids  [][]float64
	labels     []int
	iterations int
}

// NewSession creates an uninitialized session.
func NewSession(optFns ...Option) *Session {
	o := applyOptions(optFns)
	return &Session{
		opts: o,
		rng:  newRand(o.seed),
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Initialize validates cfg and data, seeds the centroids and moves the
// session to StateInitialized. manual holds the centroids for InitManual
// and is ignored otherwise.
//
// The dataset and manual centroids are copied. Initialize may be called on
// a session in any state; on failure the session is left exactly as it was.
func (s *Session) Initialize(ctx context.Context, cfg Config, data [][]float64, manual [][]float64) (err error) {
	start := time.Now()
	defer func() {
		s.opts.metricsCollector.RecordInitialize(cfg.Init, time.Since(start), err)
		s.opts.logger.LogInitialize(ctx, cfg, len(data), err)
	}()

	const op = "initialize"

	if err := validateDataset(data); err != nil {
		return configError(op, err)
	}

	if cfg.MaxIter <= 0 {
		return configError(op, fmt.Errorf("%w: %d", ErrInvalidMaxIter, cfg.MaxIter))
	}

	if cfg.K < 1 || cfg.K > len(data) {
		return configError(op, fmt.Errorf("%w: k=%d, points=%d", ErrInvalidK, cfg.K, len(data)))
	}

	seeder, err := cfg.seeder(manual)
	if err != nil {
		return configError(op, err)
	}

	if cfg.Init == InitManual {
		if err := validateFinite(manual); err != nil {
			return configError(op, err)
		}
	}

	centroids, err := seeder.Seed(data, cfg.K, s.rng)
	if err != nil {
		return translateError(op, err)
	}

	s.cfg = cfg.withDefaults()
	s.data = kmeans.Clone(data)
	s.centroids = centroids
	s.labels = nil
	s.iterations = 0
	s.state = StateInitialized

	return nil
}

// Step performs one assign/update cycle: label every point with its
// nearest centroid, recompute each centroid as the mean of its points and
// compare the new centroids with the old ones.
//
// In StateConverged no work is done and the current centroids and labels
// are reported with Converged set.
func (s *Session) Step(ctx context.Context) (StepResult, error) {
	if s.state == StateUninitialized {
		err := runtimeError("step", ErrNotInitialized)
		s.opts.metricsCollector.RecordStep(0, false, 0, err)
		s.opts.logger.LogStep(ctx, s.iterations, false, nil, err)
		return StepResult{}, err
	}

	if s.state == StateConverged {
		return s.stepResult(true, nil), nil
	}

	start := time.Now()
	converged, reseeded := s.step()

	s.opts.metricsCollector.RecordStep(time.Since(start), converged, len(reseeded), nil)
	s.opts.logger.LogStep(ctx, s.iterations, converged, reseeded, nil)

	return s.stepResult(converged, reseeded), nil
}

// Run steps until a cycle converges or MaxIter cycles were performed by
// this call.
//
// RunResult.Converged is only set on real convergence; hitting the cap
// sets RunResult.CapReached instead and leaves the session in
// StateStepping.
func (s *Session) Run(ctx context.Context) (res RunResult, err error) {
	start := time.Now()
	defer func() {
		s.opts.metricsCollector.RecordRun(res.Iterations, res.CapReached, time.Since(start), err)
		s.opts.logger.LogRun(ctx, res, err)
	}()

	if s.state == StateUninitialized {
		return RunResult{}, runtimeError("run", ErrNotInitialized)
	}

	if s.state != StateConverged {
		for res.Iterations < s.cfg.MaxIter {
			stepStart := time.Now()
			converged, reseeded := s.step()
			res.Iterations++

			s.opts.metricsCollector.RecordStep(time.Since(stepStart), converged, len(reseeded), nil)
			s.opts.logger.LogStep(ctx, s.iterations, converged, reseeded, nil)

			if converged {
				break
			}
		}
	}

	res.Converged = s.state == StateConverged
	res.CapReached = !res.Converged
	res.Centroids = kmeans.Clone(s.centroids)
	res.Labels = slices.Clone(s.labels)

	return res, nil
}

// Predict labels each point with the index of its nearest centroid without
// changing the session.
func (s *Session) Predict(ctx context.Context, points [][]float64) (labels []int, err error) {
	start := time.Now()
	defer func() {
		s.opts.metricsCollector.RecordPredict(len(points), time.Since(start), err)
		s.opts.logger.LogPredict(ctx, len(points), err)
	}()

	const op = "predict"

	if s.state == StateUninitialized {
		return nil, runtimeError(op, ErrNotInitialized)
	}

	dim := s.Dimension()
	for i, p := range points {
		if len(p) != dim {
			return nil, configError(op, &DimensionMismatchError{Index: i, Expected: dim, Actual: len(p)})
		}
	}

	if err := validateFinite(points); err != nil {
		return nil, configError(op, err)
	}

	return kmeans.Assign(points, s.centroids, nil), nil
}

// Reset discards the dataset, centroids, labels and configuration and
// returns the session to StateUninitialized. The random source keeps its
// position.
func (s *Session) Reset(ctx context.Context) {
	s.state = StateUninitialized
	s.cfg = Config{}
	s.data = nil
	s.centroids = nil
	s.labels = nil
	s.iterations = 0

	s.opts.logger.LogReset(ctx)
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Config returns the configuration of the current session.
func (s *Session) Config() Config { return s.cfg }

// Seed returns the seed of the session's random source.
func (s *Session) Seed() uint64 { return s.opts.seed }

// Iterations returns the number of cycles completed since Initialize.
func (s *Session) Iterations() int { return s.iterations }

// Dimension returns the dimension of the dataset, or 0 if uninitialized.
func (s *Session) Dimension() int {
	if len(s.data) == 0 {
		return 0
	}
	return len(s.data[0])
}

// Dataset returns a copy of the dataset.
func (s *Session) Dataset() [][]float64 { return kmeans.Clone(s.data) }

// Centroids returns a copy of the current centroids.
func (s *Session) Centroids() [][]float64 { return kmeans.Clone(s.centroids) }

// Labels returns a copy of the current labels. It is nil until the first step.
func (s *Session) Labels() []int { return slices.Clone(s.labels) }

// Clusters returns, for every cluster, the bitmap of point indices that
// carry its label. All bitmaps are empty until the first step.
func (s *Session) Clusters() []*roaring.Bitmap {
	clusters := make([]*roaring.Bitmap, s.cfg.K)
	for j := range clusters {
		clusters[j] = roaring.New()
	}

	for i, l := range s.labels {
		clusters[l].Add(uint32(i))
	}

	return clusters
}

// Members returns the point indices labelled with cluster i.
// Out of range indices yield an empty bitmap.
func (s *Session) Members(i int) *roaring.Bitmap {
	if i < 0 || i >= s.cfg.K {
		return roaring.New()
	}
	return s.Clusters()[i]
}

// ClusterSizes returns the number of points in each cluster.
func (s *Session) ClusterSizes() []int {
	clusters := s.Clusters()

	sizes := make([]int, len(clusters))
	for j, bm := range clusters {
		sizes[j] = int(bm.GetCardinality())
	}

	return sizes
}

// Inertia returns the sum of squared distances of the points to the
// centroids of their clusters. It is 0 until the first step.
func (s *Session) Inertia() float64 {
	if len(s.labels) == 0 {
		return 0
	}
	return kmeans.Inertia(s.data, s.centroids, s.labels)
}

func (s *Session) step() (bool, []int) {
	s.labels = kmeans.Assign(s.data, s.centroids, s.labels)

	old := s.centroids
	next, reseeded := kmeans.Update(s.data, s.labels, s.cfg.K, s.rng)

	s.centroids = next
	s.iterations++

	if kmeans.AllClose(next, old, s.cfg.AbsTol, s.cfg.RelTol) {
		s.state = StateConverged
		return true, reseeded
	}

	s.state = StateStepping

	return false, reseeded
}

func (s *Session) stepResult(converged bool, reseeded []int) StepResult {
	return StepResult{
		Centroids: kmeans.Clone(s.centroids),
		Labels:    slices.Clone(s.labels),
		Converged: converged,
		Iteration: s.iterations,
		Reseeded:  reseeded,
	}
}

func validateDataset(data [][]float64) error {
	if len(data) == 0 {
		return ErrEmptyDataset
	}

	dim := len(data[0])
	if dim == 0 {
		return fmt.Errorf("%w: points have no coordinates", ErrDimensionMismatch)
	}

	for i, p := range data {
		if len(p) != dim {
			return &DimensionMismatchError{Index: i, Expected: dim, Actual: len(p)}
		}
	}

	return validateFinite(data)
}

func validateFinite(m [][]float64) error {
	for i, p := range m {
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d", ErrNonFinite, i)
			}
		}
	}
	return nil
}
