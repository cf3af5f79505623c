// Package cache implements a generic in-memory store with per-entry TTL,
// a stale-while-revalidate window, FIFO max-size eviction and a version tag
// for bulk invalidation. It shields every network fetch in the scan path.
package cache

import (
	"context"
	"sync"
	"time"
)

// Options configures a Cache.
type Options struct {
	MaxSize     int           // entry count bound, FIFO-evicted when exceeded
	DefaultTTL  time.Duration // freshness window
	StaleWindow time.Duration // stale-but-servable window after TTL
	Version     string        // tag copied into entries at write time
}

// entry is one stored value with its freshness metadata.
type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
	stale    time.Duration
	version  string
	seq      uint64
}

type orderRef[K comparable] struct {
	key K
	seq uint64
}

// Cache is a TTL + stale-while-revalidate store. Eviction is FIFO by write
// order, not LRU: a hot old key can still be evicted. That trade-off keeps
// bookkeeping O(1) and matches the behavior callers depend on; do not
// replace it with recency tracking.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]*entry[V]
	order      []orderRef[K] // write order; stale refs skipped at evict time
	seq        uint64
	opts       Options
	refreshing map[K]bool // keys with a background revalidation in flight
	now        func() time.Time

	// onEvent, when set, observes cache activity for metrics. Never blocks.
	onEvent func(hit bool)
}

// New creates a cache. MaxSize <= 0 means unbounded.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	return &Cache[K, V]{
		entries:    make(map[K]*entry[V]),
		opts:       opts,
		refreshing: make(map[K]bool),
		now:        time.Now,
	}
}

// SetClock overrides the cache's clock. Test use only.
func (c *Cache[K, V]) SetClock(fn func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = fn
}

// SetObserver registers a hit/miss observer invoked on every Get/GetOrLoad.
func (c *Cache[K, V]) SetObserver(fn func(hit bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// freshness classification for an entry at time t.
type freshness int

const (
	fresh freshness = iota
	staleServable
	expired
)

func (c *Cache[K, V]) classify(e *entry[V], t time.Time) freshness {
	if e.version != c.opts.Version {
		return expired
	}
	age := t.Sub(e.storedAt)
	switch {
	case age < e.ttl:
		return fresh
	case age < e.ttl+e.stale:
		return staleServable
	default:
		return expired
	}
}

// Get returns the cached value if it is fresh or still inside the stale
// window. Expired and version-mismatched entries are misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || c.classify(e, c.now()) == expired {
		c.observe(false)
		return zero, false
	}
	c.observe(true)
	return e.value, true
}

// GetOrLoad returns the value for key, loading it when needed:
//   - fresh hit: cached value, loader not called
//   - stale hit: cached value immediately, one background reload triggered
//   - miss or expired: loader called synchronously, result stored and
//     returned; a loader error propagates and nothing is cached
//
// The returned bool is true only when the loader ran synchronously on the
// calling goroutine, so callers can tell a served-from-cache response apart
// from a real load without racing the background reload.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, loader func(context.Context) (V, error)) (V, bool, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		switch c.classify(e, c.now()) {
		case fresh:
			c.observe(true)
			v := e.value
			c.mu.Unlock()
			return v, false, nil
		case staleServable:
			c.observe(true)
			v := e.value
			if !c.refreshing[key] {
				c.refreshing[key] = true
				go c.revalidate(key, loader)
			}
			c.mu.Unlock()
			return v, false, nil
		}
	}
	c.observe(false)
	c.mu.Unlock()

	value, err := loader(ctx)
	if err != nil {
		var zero V
		return zero, true, err
	}
	c.Set(key, value)
	return value, true, nil
}

// revalidate runs a background reload for a stale entry. A failed reload
// leaves the stale entry in place; it will expire on its own schedule.
func (c *Cache[K, V]) revalidate(key K, loader func(context.Context) (V, error)) {
	defer func() {
		c.mu.Lock()
		delete(c.refreshing, key)
		c.mu.Unlock()
	}()

	value, err := loader(context.Background())
	if err != nil {
		return
	}
	c.Set(key, value)
}

// Set stores value under key with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.opts.DefaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = &entry[V]{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
		stale:    c.opts.StaleWindow,
		version:  c.opts.Version,
		seq:      c.seq,
	}
	c.order = append(c.order, orderRef[K]{key: key, seq: c.seq})
	c.evictLocked()
}

// evictLocked drops oldest-written entries until the size bound holds.
// Must be called with mu held.
func (c *Cache[K, V]) evictLocked() {
	if c.opts.MaxSize <= 0 {
		return
	}
	for len(c.entries) > c.opts.MaxSize && len(c.order) > 0 {
		ref := c.order[0]
		c.order = c.order[1:]
		if e, ok := c.entries[ref.key]; ok && e.seq == ref.seq {
			delete(c.entries, ref.key)
		}
	}
	// Compact refs left behind by overwrites and deletes.
	if len(c.order) > 4*len(c.entries)+16 {
		live := c.order[:0]
		for _, ref := range c.order {
			if e, ok := c.entries[ref.key]; ok && e.seq == ref.seq {
				live = append(live, ref)
			}
		}
		c.order = live
	}
}

// Delete removes a single key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateMatching removes every key the predicate accepts and returns
// how many entries were dropped.
func (c *Cache[K, V]) InvalidateMatching(pred func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if pred(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes everything.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
	c.order = nil
}

// SetVersion changes the cache version tag. Entries written under a
// different version are treated as expired from then on.
func (c *Cache[K, V]) SetVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Version = version
}

// Len returns the number of stored entries, including ones that have
// expired but not yet been evicted or overwritten.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns a snapshot of all stored keys.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[K, V]) observe(hit bool) {
	if c.onEvent != nil {
		c.onEvent(hit)
	}
}
