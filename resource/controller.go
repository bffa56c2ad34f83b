// Package resource bounds the load a kmeanslab service accepts: request
// rate, concurrent run operations and the memory held by session datasets
// and cached snapshots.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimit is returned by AcquireMemory for requests larger than the
// whole memory limit.
var ErrMemoryLimit = errors.New("resource: request exceeds memory limit")

// Config holds resource limits.
type Config struct {
	// RequestsPerSecond is the sustained request rate.
	// If 0, requests are not rate limited.
	RequestsPerSecond float64

	// Burst is the number of requests admitted at once.
	// If 0, defaults to max(1, RequestsPerSecond).
	Burst int

	// MaxConcurrentRuns is the maximum number of run operations executing
	// at the same time. If 0, defaults to 1.
	MaxConcurrentRuns int64

	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64
}

// Stats is a point-in-time view of a Controller.
type Stats struct {
	ActiveRuns       int64
	MemoryUsedBytes  int64
	RejectedRequests int64
	RejectedRuns     int64
}

// Controller manages request admission, run concurrency and memory.
// A nil *Controller admits everything.
type Controller struct {
	cfg Config

	limiter *rate.Limiter // nil if unlimited

	runSem     *semaphore.Weighted
	activeRuns atomic.Int64

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	rejectedRequests atomic.Int64
	rejectedRuns     atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 1
	}

	c := &Controller{
		cfg:    cfg,
		runSem: semaphore.NewWeighted(cfg.MaxConcurrentRuns),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RequestsPerSecond))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	return c
}

// Allow reports whether a request may be served now.
func (c *Controller) Allow() bool {
	if c == nil || c.limiter == nil {
		return true
	}
	if c.limiter.Allow() {
		return true
	}
	c.rejectedRequests.Add(1)
	return false
}

// TryAcquireRun reserves a run slot without blocking.
func (c *Controller) TryAcquireRun() bool {
	if c == nil {
		return true
	}
	if !c.runSem.TryAcquire(1) {
		c.rejectedRuns.Add(1)
		return false
	}
	c.activeRuns.Add(1)
	return true
}

// AcquireRun reserves a run slot, blocking until one is free or ctx is canceled.
func (c *Controller) AcquireRun(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.runSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.activeRuns.Add(1)
	return nil
}

// ReleaseRun releases a run slot.
func (c *Controller) ReleaseRun() {
	if c == nil {
		return
	}
	c.activeRuns.Add(-1)
	c.runSem.Release(1)
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
// Requests above the limit itself fail with ErrMemoryLimit.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryLimit
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Stats returns the current counters.
func (c *Controller) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		ActiveRuns:       c.activeRuns.Load(),
		MemoryUsedBytes:  c.memUsed.Load(),
		RejectedRequests: c.rejectedRequests.Load(),
		RejectedRuns:     c.rejectedRuns.Load(),
	}
}

// DatasetBytes is the memory accounted for n points of dimension dim.
func DatasetBytes(n, dim int) int64 {
	return int64(n) * int64(dim) * 8
}
