package kmeanslab

import (
	"log/slog"
	"math/rand/v2"
)

type options struct {
	seed             uint64
	seeded           bool
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Session.
type Option func(*options)

// WithSeed fixes the seed of the session's random source.
//
// Every random decision of a session (random seeding, the first pick of
// farthest-point and k-means++, k-means++ sampling and empty-cluster
// reseeding) is drawn from this single source, so two sessions with the same
// seed, configuration and data evolve identically.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &kmeanslab.BasicMetricsCollector{}
//	s := kmeanslab.NewSession(kmeanslab.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Steps: %d, converged: %d\n", stats.StepCount, stats.ConvergedSteps)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := kmeanslab.NewJSONLogger(slog.LevelInfo)
//	s := kmeanslab.NewSession(kmeanslab.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if !o.seeded {
		o.seed = rand.Uint64()
	}
	return o
}
