package fingerprint

import (
	"context"
	"sync"
	"time"

	"github.com/addanuj/mcp-client/pkg/cache"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 50
)

type Options struct {
	// TTL is the validity window of a cached result.
	TTL time.Duration
	// MaxEntries bounds each session's cache; the oldest entry is evicted first.
	MaxEntries int
	Now        func() time.Time
}

// Stats counts cache activity for one session.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Stores  int `json:"stores"`
	Entries int `json:"entries"`
}

type sessionCache struct {
	entries *cache.Cache[any]
	stats   Stats
}

// Cache keeps one result cache per session. Sessions never share entries.
type Cache struct {
	opts     Options
	mu       sync.Mutex
	sessions map[string]*sessionCache
}

func NewCache(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{opts: opts, sessions: make(map[string]*sessionCache)}
}

func (c *Cache) session(sessionID string, create bool) *sessionCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc, ok := c.sessions[sessionID]
	if !ok && create {
		sc = &sessionCache{}
		sc.entries = cache.New[any](cache.Options{TTL: c.opts.TTL, MaxEntries: c.opts.MaxEntries, Now: c.opts.Now}, cache.MetricsHooks{
			OnEvict: func(map[string]string) { cacheEvictionsTotal.Inc() },
		})
		c.sessions[sessionID] = sc
	}
	return sc
}

// Lookup returns the cached result for fp in the session, if still valid.
func (c *Cache) Lookup(sessionID string, fp Fingerprint) (any, bool) {
	sc := c.session(sessionID, true)
	val, ok := sc.entries.Peek(string(fp))
	c.record(sessionID, ok)
	return val, ok
}

// Store caches a successful result.
func (c *Cache) Store(sessionID string, fp Fingerprint, result any) {
	sc := c.session(sessionID, true)
	sc.entries.Set(string(fp), result)
	c.mu.Lock()
	sc.stats.Stores++
	c.mu.Unlock()
	cacheStoresTotal.Inc()
}

// Resolve serves fp from the session cache or calls load, storing the result
// when load succeeds. Concurrent misses for the same fingerprint share one
// load. hit reports a cache hit.
func (c *Cache) Resolve(ctx context.Context, sessionID string, fp Fingerprint, load func(ctx context.Context) (any, error)) (result any, hit bool, err error) {
	sc := c.session(sessionID, true)
	result, hit, err = sc.entries.Get(ctx, string(fp), func(ctx context.Context, _ string) (any, bool, error) {
		val, loadErr := load(ctx)
		if loadErr != nil {
			return nil, false, loadErr
		}
		c.mu.Lock()
		sc.stats.Stores++
		c.mu.Unlock()
		cacheStoresTotal.Inc()
		return val, true, nil
	})
	c.record(sessionID, hit)
	if err != nil {
		return nil, false, err
	}
	return result, hit, nil
}

// EndSession drops every entry of the session.
func (c *Cache) EndSession(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

func (c *Cache) Stats(sessionID string) Stats {
	sc := c.session(sessionID, false)
	if sc == nil {
		return Stats{}
	}
	c.mu.Lock()
	stats := sc.stats
	c.mu.Unlock()
	stats.Entries = len(sc.entries.Snapshot())
	return stats
}

func (c *Cache) record(sessionID string, hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sc, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	if hit {
		sc.stats.Hits++
	} else {
		sc.stats.Misses++
	}
}
