package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/kmeanslab/resource"
)

// LRU is a thread-safe least-recently-used cache bounded by the total
// weight of its entries.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	weigh     func(V) int64
	onEvict   func(K, V)
	items     map[K]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key    K
	value  V
	weight int64
}

// NewLRU creates a cache holding entries up to capacity total weight.
// weigh may be nil, in which case every entry weighs 1.
// If rc is provided, it will be used to track memory usage.
func NewLRU[K comparable, V any](capacity int64, weigh func(V) int64, rc *resource.Controller) *LRU[K, V] {
	if weigh == nil {
		weigh = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		capacity:  capacity,
		weigh:     weigh,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// OnEvict registers fn to be called for every entry pushed out by a Set.
// fn runs after the cache lock is released. It is not called for Remove.
func (c *LRU[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns a cached value and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}

	c.misses.Add(1)

	var zero V
	return zero, false
}

// Set caches a value, evicting the least recently used entries as needed.
// It returns false if the value was not admitted: it is heavier than the
// whole cache or the attached controller refused its memory.
func (c *LRU[K, V]) Set(key K, value V) bool {
	var evicted []*entry[K, V]

	ok := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()

		weight := c.weigh(value)
		if weight > c.capacity {
			return false
		}

		if ent, ok := c.items[key]; ok {
			old := ent.Value.(*entry[K, V])
			if weight > old.weight && !c.rc.TryAcquireMemory(weight-old.weight) {
				return false
			}
			if weight < old.weight {
				c.rc.ReleaseMemory(old.weight - weight)
			}

			c.size += weight - old.weight
			old.value = value
			old.weight = weight
			c.evictList.MoveToFront(ent)
			evicted = c.evict(key)
			return true
		}

		// Evict locally first so the released memory can be reacquired.
		for c.size+weight > c.capacity {
			back := c.evictList.Back()
			if back == nil {
				break
			}
			evicted = append(evicted, c.removeElement(back))
		}

		if !c.rc.TryAcquireMemory(weight) {
			return false
		}

		c.items[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value, weight: weight})
		c.size += weight

		return true
	}()

	c.notify(evicted)

	return ok
}

// Remove deletes key and returns its value.
func (c *LRU[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		e := c.removeElement(ent)
		return e.value, true
	}

	var zero V
	return zero, false
}

// Invalidate removes entries matching the predicate.
func (c *LRU[K, V]) Invalidate(predicate func(key K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, element := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, element)
		}
	}

	for _, e := range toRemove {
		c.removeElement(e)
	}
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the total weight of the cached entries.
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cache statistics.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// evict trims the cache to capacity without touching keep.
func (c *LRU[K, V]) evict(keep K) []*entry[K, V] {
	var evicted []*entry[K, V]
	for c.size > c.capacity {
		back := c.evictList.Back()
		if back == nil || back.Value.(*entry[K, V]).key == keep {
			break
		}
		evicted = append(evicted, c.removeElement(back))
	}
	return evicted
}

func (c *LRU[K, V]) removeElement(e *list.Element) *entry[K, V] {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[K, V])
	delete(c.items, kv.key)
	c.size -= kv.weight
	c.rc.ReleaseMemory(kv.weight)
	return kv
}

func (c *LRU[K, V]) notify(evicted []*entry[K, V]) {
	if len(evicted) == 0 {
		return
	}

	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()

	if fn == nil {
		return
	}
	for _, e := range evicted {
		fn(e.key, e.value)
	}
}
