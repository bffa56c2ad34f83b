package blobstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/kmeanslab/internal/cache"
	"github.com/hupe1980/kmeanslab/resource"
)

// CachingStore wraps a Store and keeps recently read blobs in memory.
// Writes and deletes go straight to the inner store and invalidate the
// cached copy.
type CachingStore struct {
	inner Store
	cache *cache.LRU[string, []byte]

	// mu guards gens. A name's generation is bumped by every write or
	// delete, so a read that raced with one does not cache what it read.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewCachingStore creates a new CachingStore holding up to capacityBytes
// of blob data. If rc is provided, cached bytes are accounted against its
// memory budget.
func NewCachingStore(inner Store, capacityBytes int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU[string, []byte](capacityBytes, func(b []byte) int64 { return int64(len(b)) }, rc),
		gens:  make(map[string]uint64),
	}
}

// Put writes through to the inner store.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	err := s.inner.Put(ctx, name, data)
	s.invalidate(name)
	return err
}

// Get serves a blob from the cache or reads it from the inner store.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		return slices.Clone(data), nil
	}

	gen := s.generation(name)

	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gens[name] == gen {
		s.cache.Set(name, slices.Clone(data))
	}
	s.mu.Unlock()

	return data, nil
}

// Delete removes the blob from the inner store and the cache.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	err := s.inner.Delete(ctx, name)
	s.invalidate(name)
	return err
}

// List is answered by the inner store. Cached blobs under prefix that are
// no longer listed were removed by another writer and are dropped.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]struct{}, len(names))
	for _, n := range names {
		listed[n] = struct{}{}
	}

	s.cache.Invalidate(func(name string) bool {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		_, ok := listed[name]
		return !ok
	})

	return names, nil
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *CachingStore) generation(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[name]
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[name]++
	s.cache.Remove(name)
}
