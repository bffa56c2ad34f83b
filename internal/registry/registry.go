// Package registry keeps the live clustering sessions of the HTTP service.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/internal/cache"
	"github.com/hupe1980/kmeanslab/resource"
)

// DefaultCapacity is the number of sessions kept when none is configured.
const DefaultCapacity = 1024

var (
	// ErrNotFound is returned for unknown or evicted session ids.
	ErrNotFound = errors.New("registry: session not found")

	// ErrMemoryLimit is returned when a dataset does not fit the memory budget.
	ErrMemoryLimit = errors.New("registry: memory limit exceeded")
)

// Handle is one client's session plus the dataset it supplied.
// Callers must hold the handle lock while they use the session.
type Handle struct {
	sync.Mutex

	ID      string
	Session *kmeanslab.Session

	rc      *resource.Controller
	wait    time.Duration
	data    [][]float64
	dataDim int
	charged int64
}

// Data returns the pending dataset used by the next initialize.
// The caller must hold the lock.
func (h *Handle) Data() [][]float64 { return h.data }

// SetData replaces the pending dataset and accounts for its memory. With a
// queue timeout configured it waits up to that long for memory held by
// other sessions to be released.
// The caller must hold the lock.
func (h *Handle) SetData(ctx context.Context, data [][]float64) error {
	dim := 0
	if len(data) > 0 {
		dim = len(data[0])
	}

	bytes := resource.DatasetBytes(len(data), dim)
	if bytes > h.charged {
		if err := h.reserve(ctx, bytes-h.charged); err != nil {
			return err
		}
	} else {
		h.rc.ReleaseMemory(h.charged - bytes)
	}

	h.data = data
	h.dataDim = dim
	h.charged = bytes

	return nil
}

func (h *Handle) reserve(ctx context.Context, bytes int64) error {
	if h.wait <= 0 {
		if !h.rc.TryAcquireMemory(bytes) {
			return ErrMemoryLimit
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()

	if err := h.rc.AcquireMemory(ctx, bytes); err != nil {
		return fmt.Errorf("%w: %w", ErrMemoryLimit, err)
	}
	return nil
}

func (h *Handle) release() {
	h.Lock()
	defer h.Unlock()

	h.rc.ReleaseMemory(h.charged)
	h.charged = 0
	h.data = nil
}

// Stats describes the registry.
type Stats struct {
	Sessions int
	Hits     int64
	Misses   int64
	Evicted  int64
}

// Registry is a bounded, concurrency-safe map from session id to Handle.
// When full, the least recently used session is evicted.
type Registry struct {
	sessions *cache.LRU[string, *Handle]
	rc       *resource.Controller
	opts     []kmeanslab.Option
	wait     time.Duration
	evicted  int64
	mu       sync.Mutex
	onEvict  func(id string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithSessionOptions sets the options every new session is created with.
func WithSessionOptions(opts ...kmeanslab.Option) Option {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// WithResourceController accounts pending datasets against rc's memory budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(r *Registry) { r.rc = rc }
}

// WithQueueTimeout makes SetData wait up to d for memory instead of
// failing at once when the budget is exhausted.
func WithQueueTimeout(d time.Duration) Option {
	return func(r *Registry) { r.wait = d }
}

// WithEvictionCallback registers fn to be called with the id of every
// session evicted for capacity.
func WithEvictionCallback(fn func(id string)) Option {
	return func(r *Registry) { r.onEvict = fn }
}

// New creates a registry holding up to capacity sessions.
func New(capacity int, optFns ...Option) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	r := &Registry{
		sessions: cache.NewLRU[string, *Handle](int64(capacity), nil, nil),
	}
	for _, fn := range optFns {
		fn(r)
	}

	r.sessions.OnEvict(func(id string, h *Handle) {
		h.release()

		r.mu.Lock()
		r.evicted++
		fn := r.onEvict
		r.mu.Unlock()

		if fn != nil {
			fn(id)
		}
	})

	return r
}

// Create starts a new session with a fresh id. extra options are applied
// after the registry's session options.
func (r *Registry) Create(extra ...kmeanslab.Option) *Handle {
	opts := append(append([]kmeanslab.Option(nil), r.opts...), extra...)
	return r.add(kmeanslab.NewSession(opts...))
}

// Restore registers a session rebuilt from snap under a fresh id. The
// snapshot's dataset becomes the pending dataset, also for snapshots of
// uninitialized sessions.
func (r *Registry) Restore(ctx context.Context, snap kmeanslab.Snapshot) (*Handle, error) {
	s, err := kmeanslab.Restore(snap, r.opts...)
	if err != nil {
		return nil, err
	}

	h := r.add(s)

	if len(snap.Data) > 0 {
		h.Lock()
		err := h.SetData(ctx, snap.Data)
		h.Unlock()

		if err != nil {
			r.Delete(h.ID)
			return nil, err
		}
	}

	return h, nil
}

func (r *Registry) add(s *kmeanslab.Session) *Handle {
	h := &Handle{
		ID:      uuid.NewString(),
		Session: s,
		rc:      r.rc,
		wait:    r.wait,
	}
	r.sessions.Set(h.ID, h)
	return h
}

// Get returns the handle of id.
func (r *Registry) Get(id string) (*Handle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	h, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// Delete removes id. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	h, ok := r.sessions.Remove(id)
	if ok {
		h.release()
	}
	return ok
}

// IDs returns the ids of all sessions, most recently used first.
func (r *Registry) IDs() []string {
	return r.sessions.Keys()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Stats returns registry statistics.
func (r *Registry) Stats() Stats {
	hits, misses := r.sessions.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Sessions: r.sessions.Len(),
		Hits:     hits,
		Misses:   misses,
		Evicted:  r.evicted,
	}
}
