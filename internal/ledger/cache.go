package ledger

import "sync"

// Cache is the read-through, invalidate-on-write entry cache described in
// §4.1: snapshots are immutable once inserted, readers hold them by value,
// and any write first flushes the affected key. Access is guarded by a
// RWMutex even though §5 describes a single-actor apply path, since debug
// tooling (CheckAgainstDatabase) may read the cache from outside the close
// loop.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]LedgerEntry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]LedgerEntry)}
}

// Get returns the cached snapshot for key, if present.
func (c *Cache) Get(key LedgerKey) (LedgerEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.CacheKey()]
	return e, ok
}

// Put inserts or replaces the cached snapshot for key.
func (c *Cache) Put(key LedgerKey, entry LedgerEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.CacheKey()] = entry
}

// Flush invalidates any cached snapshot for key. Every store* call flushes
// the cache entry for its key before touching storage (§4.1).
func (c *Cache) Flush(key LedgerKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.CacheKey())
}

// FlushAll clears the entire cache, used on ledger close.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]LedgerEntry)
}
