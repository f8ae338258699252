package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultTTL is how long a computed result is served before recomputing.
const DefaultTTL = 300 * time.Second

// keyPrefix namespaces search results in the key space.
const keyPrefix = "search:"

// Entry is one cached result.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// ComputeFunc produces the bytes for a query on a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Stats are cumulative hit/miss counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cache is a TTL cache keyed by query content hash. Safe for concurrent use.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time // injectable for deterministic tests
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*Entry
	hits    uint64
	misses  uint64
}

// New creates a Cache. A ttl <= 0 means DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Key returns the cache key for query.
func Key(query string) string {
	return keyPrefix + strconv.FormatUint(xxhash.Sum64String(Normalize(query)), 16)
}

// Normalize folds query into the form used for hashing, so "Old  Fashioned"
// and "old fashioned" share one entry.
func Normalize(query string) string {
	s := norm.NFKC.String(query)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// GetOrCompute returns the cached value for query or computes and stores it.
// hit reports whether the value came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, query string, compute ComputeFunc) (value []byte, hit bool, err error) {
	key := Key(query)

	if v, ok := c.lookup(key); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Stats returns the cumulative counters and current entry count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Evict removes entries that have expired at now and returns how many were removed.
func (c *Cache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := c.Evict(now); n > 0 {
				slog.Debug("cache: evicted expired entries", "count", n)
			}
		}
	}
}

// --- internal ---------------------------------------------------------------

// lookup returns a live entry and counts the hit or miss.
func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.ExpiresAt) {
		c.hits++
		return e.Value, true
	}
	c.misses++
	return nil, false
}

// peek returns a live entry without touching the counters.
func (c *Cache) peek(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.ExpiresAt) {
		return e.Value, true
	}
	return nil, false
}

func (c *Cache) store(key string, v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{Key: key, Value: v, ExpiresAt: c.now().Add(c.ttl)}
}
