package kmeanslab

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    steps *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordStep(duration time.Duration, converged bool, reseeded int, err error) {
//	    p.steps.WithLabelValues(status(err)).Inc()
//	}
type MetricsCollector interface {
	// RecordInitialize is called after each initialize operation.
	RecordInitialize(method InitMethod, duration time.Duration, err error)

	// RecordStep is called after each assign/update cycle, including the
	// cycles performed by Run. reseeded is the number of empty clusters
	// that were reseeded.
	RecordStep(duration time.Duration, converged bool, reseeded int, err error)

	// RecordRun is called after each run operation.
	RecordRun(iterations int, capReached bool, duration time.Duration, err error)

	// RecordPredict is called after each predict operation.
	RecordPredict(points int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInitialize(InitMethod, time.Duration, error) {}
func (NoopMetricsCollector) RecordStep(time.Duration, bool, int, error)        {}
func (NoopMetricsCollector) RecordRun(int, bool, time.Duration, error)         {}
func (NoopMetricsCollector) RecordPredict(int, time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InitializeCount  atomic.Int64
	InitializeErrors atomic.Int64
	StepCount        atomic.Int64
	StepErrors       atomic.Int64
	StepTotalNanos   atomic.Int64
	ConvergedSteps   atomic.Int64
	ReseededClusters atomic.Int64
	RunCount         atomic.Int64
	RunErrors        atomic.Int64
	RunIterations    atomic.Int64
	RunCapReached    atomic.Int64
	PredictCount     atomic.Int64
	PredictPoints    atomic.Int64
	PredictErrors    atomic.Int64
}

// RecordInitialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInitialize(_ InitMethod, _ time.Duration, err error) {
	b.InitializeCount.Add(1)
	if err != nil {
		b.InitializeErrors.Add(1)
	}
}

// RecordStep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStep(duration time.Duration, converged bool, reseeded int, err error) {
	b.StepCount.Add(1)
	b.StepTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StepErrors.Add(1)
		return
	}
	if converged {
		b.ConvergedSteps.Add(1)
	}
	b.ReseededClusters.Add(int64(reseeded))
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(iterations int, capReached bool, _ time.Duration, err error) {
	b.RunCount.Add(1)
	if err != nil {
		b.RunErrors.Add(1)
		return
	}
	b.RunIterations.Add(int64(iterations))
	if capReached {
		b.RunCapReached.Add(1)
	}
}

// RecordPredict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPredict(points int, _ time.Duration, err error) {
	b.PredictCount.Add(1)
	b.PredictPoints.Add(int64(points))
	if err != nil {
		b.PredictErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InitializeCount:  b.InitializeCount.Load(),
		InitializeErrors: b.InitializeErrors.Load(),
		StepCount:        b.StepCount.Load(),
		StepErrors:       b.StepErrors.Load(),
		StepAvgNanos:     b.getAvgStepNanos(),
		ConvergedSteps:   b.ConvergedSteps.Load(),
		ReseededClusters: b.ReseededClusters.Load(),
		RunCount:         b.RunCount.Load(),
		RunErrors:        b.RunErrors.Load(),
		RunIterations:    b.RunIterations.Load(),
		RunCapReached:    b.RunCapReached.Load(),
		PredictCount:     b.PredictCount.Load(),
		PredictPoints:    b.PredictPoints.Load(),
		PredictErrors:    b.PredictErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgStepNanos() int64 {
	count := b.StepCount.Load()
	if count == 0 {
		return 0
	}
	return b.StepTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InitializeCount  int64
	InitializeErrors int64
	StepCount        int64
	StepErrors       int64
	StepAvgNanos     int64
	ConvergedSteps   int64
	ReseededClusters int64
	RunCount         int64
	RunErrors        int64
	RunIterations    int64
	RunCapReached    int64
	PredictCount     int64
	PredictPoints    int64
	PredictErrors    int64
}
