package kmeanslab

import (
	"fmt"
	"strings"

	"github.com/hupe1980/kmeanslab/internal/kmeans"
)

// InitMethod selects the centroid initialization strategy.
type InitMethod int

const (
	// InitRandom picks k distinct data points uniformly at random.
	InitRandom InitMethod = iota
	// InitFarthest picks a random first point, then greedily the point
	// farthest from its nearest chosen centroid.
	InitFarthest
	// InitKMeansPlusPlus picks a random first point, then samples points
	// with probability proportional to their squared distance to the
	// nearest chosen centroid.
	InitKMeansPlusPlus
	// InitManual uses caller supplied centroids.
	InitManual
)

func (m InitMethod) String() string {
	switch m {
	case InitRandom:
		return "random"
	case InitFarthest:
		return "farthest"
	case InitKMeansPlusPlus:
		return "kmeans++"
	case InitManual:
		return "manual"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseInitMethod converts a wire name into an InitMethod.
// Accepted names are "random", "farthest", "kmeans++" (or "kmeanspp") and
// "manual", case-insensitive.
func ParseInitMethod(s string) (InitMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random":
		return InitRandom, nil
	case "farthest":
		return InitFarthest, nil
	case "kmeans++", "kmeanspp":
		return InitKMeansPlusPlus, nil
	case "manual":
		return InitManual, nil
	default:
		return 0, configError("parse", fmt.Errorf("%w: %q", ErrUnknownInitMethod, s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m InitMethod) MarshalText() ([]byte, error) {
	if m < InitRandom || m > InitManual {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInitMethod, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *InitMethod) UnmarshalText(text []byte) error {
	v, err := ParseInitMethod(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Default configuration values.
const (
	DefaultK       = 3
	DefaultMaxIter = 100
)

// Config is the configuration of a clustering session.
type Config struct {
	// K is the number of clusters.
	K int `json:"k"`
	// Init is the centroid initialization strategy.
	Init InitMethod `json:"init"`
	// MaxIter caps the number of assign/update cycles performed by Run.
	MaxIter int `json:"max_iter"`
	// AbsTol and RelTol are the tolerances of the convergence test.
	// Zero selects the defaults (1e-8 and 1e-5).
	AbsTol float64 `json:"abs_tol,omitempty"`
	RelTol float64 `json:"rel_tol,omitempty"`
}

// DefaultConfig returns a Config with k=3, random initialization and an
// iteration cap of 100.
func DefaultConfig() Config {
	return Config{
		K:       DefaultK,
		Init:    InitRandom,
		MaxIter: DefaultMaxIter,
	}
}

func (c Config) withDefaults() Config {
	if c.AbsTol == 0 {
		c.AbsTol = kmeans.DefaultAbsTol
	}
	if c.RelTol == 0 {
		c.RelTol = kmeans.DefaultRelTol
	}
	return c
}

// seeder maps the initialization method onto its strategy.
func (c Config) seeder(manual [][]float64) (kmeans.Seeder, error) {
	switch c.Init {
	case InitRandom:
		return kmeans.RandomSeeder{}, nil
	case InitFarthest:
		return kmeans.FarthestSeeder{}, nil
	case InitKMeansPlusPlus:
		return kmeans.PlusPlusSeeder{}, nil
	case InitManual:
		return kmeans.ManualSeeder{Centroids: manual}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownInitMethod, int(c.Init))
	}
}
