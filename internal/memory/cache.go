// ABOUTME: Bounded in-process caches for recent interactions and important memory entries
// ABOUTME: Mutex-guarded maps with explicit oldest-by-timestamp eviction

package memory

import (
	"sync"
	"time"

	"github.com/2389/relay-gateway/internal/store"
)

// recencyCache holds the most recently stored interactions, bounded by
// capacity. Insertion past capacity evicts the oldest entry by timestamp.
// All operations take the lock so readers never observe a torn view.
type recencyCache struct {
	mu       sync.RWMutex
	entries  map[string]*store.Interaction
	capacity int
}

func newRecencyCache(capacity int) *recencyCache {
	return &recencyCache{
		entries:  make(map[string]*store.Interaction),
		capacity: capacity,
	}
}

// Insert adds an interaction, evicting the oldest cached entry if the cache
// would exceed capacity. Insert and evict happen under one lock acquisition.
func (c *recencyCache) Insert(in *store.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[in.ID] = in
	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the entry with the earliest timestamp.
// Must be called with mu held.
func (c *recencyCache) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, in := range c.entries {
		if oldestID == "" || in.Timestamp.Before(oldest) {
			oldestID = id
			oldest = in.Timestamp
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// Snapshot returns a copy of all cached interactions.
func (c *recencyCache) Snapshot() []*store.Interaction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*store.Interaction, 0, len(c.entries))
	for _, in := range c.entries {
		out = append(out, in)
	}
	return out
}

// IDs returns the ids of all cached interactions.
func (c *recencyCache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

func (c *recencyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// importantCache holds high-importance memory entries for I/O-free search
// hits. It is an optimization, not a correctness requirement: entries are
// always written durably first. Bounded; insertion past capacity evicts the
// oldest entry by timestamp.
type importantCache struct {
	mu       sync.RWMutex
	entries  map[string]*store.MemoryEntry
	capacity int
}

func newImportantCache(capacity int) *importantCache {
	return &importantCache{
		entries:  make(map[string]*store.MemoryEntry),
		capacity: capacity,
	}
}

func (c *importantCache) Insert(entry *store.MemoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.ID] = entry
	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the entry with the earliest timestamp.
// Must be called with mu held.
func (c *importantCache) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.Timestamp.Before(oldest) {
			oldestID = id
			oldest = entry.Timestamp
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// Remove deletes entries by id. Absent ids are ignored.
func (c *importantCache) Remove(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
}

// Match returns cached entries matching the lowercased substring query and
// optional category, skipping entries past expiry at now.
func (c *importantCache) Match(loweredQuery, category string, now time.Time) []*store.MemoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []*store.MemoryEntry
	for _, entry := range c.entries {
		if category != "" && entry.Category != category {
			continue
		}
		if entry.Expired(now) {
			continue
		}
		if entry.MatchesQuery(loweredQuery) {
			matches = append(matches, entry)
		}
	}
	return matches
}

func (c *importantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
