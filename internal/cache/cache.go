// Package cache implements the proxy's thread-safe, size-bounded LRU
// response cache. Adapted from capacitor/pkg/cache/memory: same
// generic-list-plus-hash-map shape and sync.Pool-backed node recycling,
// narrowed to the spec's exact contract — byte-size bounds instead of
// entry-count bounds, no TTL, a single exclusive mutex held across the
// whole of Get or Put (the spec mandates copy-under-lock, so there is no
// benefit to a read/write-split lock here).
package cache

import (
	"sync"

	"github.com/watt-toolkit/proxycache/internal/logger"
)

// Config bounds the cache's size.
type Config struct {
	// CacheSizeMax is the maximum total bytes held across all entries.
	CacheSizeMax int64
	// ElementSizeMax is the maximum size of a single entry; inserts
	// exceeding it are discarded.
	ElementSizeMax int64
}

// Cache is a thread-safe, size-bounded LRU byte cache keyed by string.
type Cache struct {
	mu   sync.Mutex
	cfg  Config
	log  *logger.Logger
	buckets map[string]*node
	lru  recencyList
	size int64

	pool sync.Pool // *node recycling, mirrors capacitor's entryPool
}

// New creates an empty cache bounded by cfg, logging HIT/MISS/eviction
// lines through log.
func New(cfg Config, log *logger.Logger) *Cache {
	return &Cache{
		cfg:     cfg,
		log:     log,
		buckets: make(map[string]*node),
		pool:    sync.Pool{New: func() any { return &node{} }},
	}
}

// Get returns a copy of the cached bytes for key, or (nil, false) on a
// miss. A hit promotes the entry to the MRU position. The copy is made
// while the lock is held, per the spec's copy-under-lock mandate.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.buckets[key]
	if !ok {
		if c.log != nil {
			c.log.Info("cache MISS key=%s", key)
		}
		return nil, false
	}

	c.lru.moveToFront(n)

	out := make([]byte, len(n.data))
	copy(out, n.data)

	if c.log != nil {
		c.log.Info("cache HIT key=%s", key)
	}
	return out, true
}

// Put inserts (or overwrites) key with data, evicting LRU entries as
// needed to stay within CacheSizeMax. Entries larger than ElementSizeMax
// are discarded with a warning and never inserted, per spec.
func (c *Cache) Put(key string, data []byte) {
	if c.cfg.ElementSizeMax > 0 && int64(len(data)) > c.cfg.ElementSizeMax {
		if c.log != nil {
			c.log.Warn("cache insert skipped: item too large key=%s size=%d", key, len(data))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Overwrite semantics: evict the old entry for key first so each key
	// is present at most once (spec permits either overwrite or no-op;
	// this is the overwrite variant).
	if old, ok := c.buckets[key]; ok {
		c.removeLocked(old)
	}

	for c.cfg.CacheSizeMax > 0 && c.size+int64(len(data)) > c.cfg.CacheSizeMax {
		victim := c.lru.back()
		if victim == nil {
			break
		}
		if c.log != nil {
			c.log.Info("cache evict key=%s size=%d", victim.key, victim.size)
		}
		c.removeLocked(victim)
	}

	n := c.pool.Get().(*node)
	n.key = key
	n.size = len(data)
	n.data = append(n.data[:0], data...)
	n.prev, n.next = nil, nil

	c.buckets[key] = n
	c.lru.pushFront(n)
	c.size += int64(n.size)
}

// removeLocked detaches n from the bucket map and the recency list and
// returns it to the node pool. Must be called with c.mu held.
func (c *Cache) removeLocked(n *node) {
	delete(c.buckets, n.key)
	c.lru.remove(n)
	c.size -= int64(n.size)
	n.data = n.data[:0]
	n.key = ""
	c.pool.Put(n)
}

// Size returns the current total number of cached bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
