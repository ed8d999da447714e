package list

import (
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// DefaultCacheTTL bounds how stale a cached list may be served.
const DefaultCacheTTL = 30 * time.Second

// cacheEntry holds one list snapshot with its write time.
type cacheEntry struct {
	items   []Item
	written time.Time
}

// Cache is the process-wide list snapshot cache, shared by every Coordinator
// in the session (a read-only viewer and a composer may be open at once).
//
// It is an explicit injected service, not a package-level static: migration
// needs Clear, refresh needs Invalidate, and tests need isolated instances.
// Entries are only TTL-protected; concurrent readers may observe up to
// TTL-old data, while a writer always write-through-updates its own entry.
type Cache struct {
	entries cmap.ConcurrentMap[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given TTL. ttl <= 0 uses DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: cmap.New[cacheEntry](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(topicID ledger.TopicID, kind Kind) string {
	return fmt.Sprintf("%s|%s", topicID, kind)
}

// Get returns the cached items for (topicID, kind) if present and within TTL.
func (c *Cache) Get(topicID ledger.TopicID, kind Kind) ([]Item, bool) {
	e, ok := c.entries.Get(cacheKey(topicID, kind))
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.written) > c.ttl {
		c.entries.Remove(cacheKey(topicID, kind))
		return nil, false
	}
	return append([]Item(nil), e.items...), true
}

// Put write-through-stores a fresh snapshot for (topicID, kind).
func (c *Cache) Put(topicID ledger.TopicID, kind Kind, items []Item) {
	c.entries.Set(cacheKey(topicID, kind), cacheEntry{
		items:   append([]Item(nil), items...),
		written: c.now(),
	})
}

// Invalidate drops the entry for (topicID, kind).
func (c *Cache) Invalidate(topicID ledger.TopicID, kind Kind) {
	c.entries.Remove(cacheKey(topicID, kind))
}

// Clear drops every entry. Used on profile migration, where all four list
// topics move at once.
func (c *Cache) Clear() {
	c.entries.Clear()
}

// Len returns the number of live entries, expired ones included.
func (c *Cache) Len() int {
	return c.entries.Count()
}
