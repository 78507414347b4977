package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
	// Now overrides the clock; tests use it to step past expiry.
	Now func() time.Time
}

type MetricsHooks struct {
	OnHit   func(labels map[string]string)
	OnMiss  func(labels map[string]string)
	OnStore func(labels map[string]string)
	OnEvict func(labels map[string]string)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
	storedAt  time.Time
}

// Cache is a TTL map with FIFO eviction and single-flight loading.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
}

// SnapshotEntry represents a point-in-time cache entry for debugging.
type SnapshotEntry[V any] struct {
	Key       string
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		items:   make(map[string]*entry[V]),
		order:   make([]string, 0, 64),
		opts:    opts,
		metrics: hooks,
	}
}

// Loader produces the value for a missing key. Returning ok=false or an
// error leaves the cache untouched.
type Loader[V any] func(ctx context.Context, key string) (V, bool, error)

type loadResult[V any] struct {
	val V
	ok  bool
	err error
}

// Get returns the cached value for key, or runs loader once for all
// concurrent callers of the same key. hit reports whether the value came
// from the cache.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (val V, hit bool, err error) {
	if v, ok := c.Peek(key); ok {
		return v, true, nil
	}
	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss(map[string]string{"key": key})
	}
	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		v, ok, loadErr := loader(ctx, key)
		if ok && loadErr == nil {
			c.Set(key, v)
		}
		return loadResult[V]{val: v, ok: ok, err: loadErr}, nil
	})
	res := result.(loadResult[V])
	return res.val, false, res.err
}

// Peek returns a live cached value without loading.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	now := c.opts.Now()
	c.mu.Lock()
	e, ok := c.items[key]
	if ok && !now.Before(e.expiresAt) {
		delete(c.items, key)
		c.removeFromOrder(key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return zero, false
	}
	if c.metrics.OnHit != nil {
		c.metrics.OnHit(map[string]string{"key": key})
	}
	return e.value, true
}

// Set stores val under key using the configured TTL.
func (c *Cache[V]) Set(key string, val V) {
	c.SetWithTTL(key, val, c.opts.TTL)
}

func (c *Cache[V]) SetWithTTL(key string, val V, ttl time.Duration) {
	now := c.opts.Now()
	e := &entry[V]{value: val, storedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	evicted := c.evictIfNeeded()
	c.mu.Unlock()
	if c.metrics.OnStore != nil {
		c.metrics.OnStore(map[string]string{"key": key})
	}
	if c.metrics.OnEvict != nil {
		for _, victim := range evicted {
			c.metrics.OnEvict(map[string]string{"key": victim})
		}
	}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Len counts stored entries, including ones that expired but were not yet touched.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Snapshot returns live entries in insertion order.
func (c *Cache[V]) Snapshot() []SnapshotEntry[V] {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SnapshotEntry[V], 0, len(c.items))
	for _, k := range c.order {
		e := c.items[k]
		if !now.Before(e.expiresAt) {
			continue
		}
		out = append(out, SnapshotEntry[V]{Key: k, Value: e.value, StoredAt: e.storedAt, ExpiresAt: e.expiresAt})
	}
	return out
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache[V]) evictIfNeeded() []string {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return nil
	}
	excess := len(c.items) - c.opts.MaxEntries
	var evicted []string
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		evicted = append(evicted, victim)
		excess--
	}
	return evicted
}
