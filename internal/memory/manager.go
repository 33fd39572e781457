// ABOUTME: Memory manager providing two-tier storage for interactions and memory entries
// ABOUTME: Write-through SQLite persistence with bounded caches for recency and importance

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/relay-gateway/internal/store"
)

const (
	// DefaultRecentCacheSize bounds the recency cache for interactions.
	DefaultRecentCacheSize = 100

	// DefaultImportantCacheSize bounds the important-entry cache.
	DefaultImportantCacheSize = 50

	// importanceCacheThreshold is the importance above which a memory entry
	// is also held in the important cache.
	importanceCacheThreshold = 0.7

	// defaultImportance is assigned when a stored entry carries no importance.
	defaultImportance = 0.5
)

// ValidationError reports a malformed record passed to a store operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Health is the memory subsystem health report. HealthCheck never fails;
// Status is "error" with Error set when the backing store is unreachable.
type Health struct {
	Status             string    `json:"status"`
	Error              string    `json:"error,omitempty"`
	InteractionCount   int       `json:"interactions_count"`
	MemoryEntryCount   int       `json:"memory_entries_count"`
	RecentCacheSize    int       `json:"recent_cache_size"`
	ImportantCacheSize int       `json:"important_cache_size"`
	Timestamp          time.Time `json:"timestamp"`
}

// Options configures cache capacities. Zero values take defaults.
type Options struct {
	RecentCacheSize    int
	ImportantCacheSize int
}

// Manager coordinates durable storage and the in-process caches.
// Writes go through to the store first; caches are only updated after a
// successful durable write. Reads prefer caches and degrade to cache-only
// results when the backing store is unavailable and a cache can serve the
// query.
type Manager struct {
	store     store.Store
	recent    *recencyCache
	important *importantCache
	logger    *slog.Logger
}

// NewManager creates a memory manager over the given store.
// Pass nil logger for the default.
func NewManager(s store.Store, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RecentCacheSize <= 0 {
		opts.RecentCacheSize = DefaultRecentCacheSize
	}
	if opts.ImportantCacheSize <= 0 {
		opts.ImportantCacheSize = DefaultImportantCacheSize
	}
	return &Manager{
		store:     s,
		recent:    newRecencyCache(opts.RecentCacheSize),
		important: newImportantCache(opts.ImportantCacheSize),
		logger:    logger.With("component", "memory"),
	}
}

// Warm preloads the caches from the durable store: the newest interactions
// fill the recency cache and the highest-importance entries above the cache
// threshold fill the important cache. Without it both caches start cold after
// a restart and cache-degraded reads serve nothing until new writes arrive.
// Store failures are logged, not returned; a cold cache is degraded, not
// broken.
func (m *Manager) Warm(ctx context.Context) {
	interactions, err := m.store.ListRecentInteractions(ctx, nil, m.recent.capacity)
	if err != nil {
		m.logger.Warn("skipping recency cache warm-up", "error", err)
	}
	for i := len(interactions) - 1; i >= 0; i-- {
		m.recent.Insert(interactions[i])
	}

	// An empty query matches every entry; results come back ordered by
	// importance, so the first capacity rows are the ones worth caching.
	entries, err := m.store.SearchMemoryEntries(ctx, "", "", time.Now().UTC(), m.important.capacity)
	if err != nil {
		m.logger.Warn("skipping important cache warm-up", "error", err)
	}
	for _, entry := range entries {
		if entry.Importance > importanceCacheThreshold {
			m.important.Insert(entry)
		}
	}

	m.logger.Info("warmed memory caches", "recent", m.recent.Len(), "important", m.important.Len())
}

// StoreInteraction persists one conversation turn. ID and Timestamp are
// assigned when absent; the record is immutable afterwards. On success the
// interaction enters the recency cache, evicting the oldest cached entry past
// capacity. On failure the cache is untouched and a *store.PersistenceError
// is returned.
func (m *Manager) StoreInteraction(ctx context.Context, in *store.Interaction) (*store.Interaction, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	if err := m.store.SaveInteraction(ctx, in); err != nil {
		return nil, err
	}

	m.recent.Insert(in)
	m.logger.Debug("stored interaction", "id", in.ID, "source", in.Source, "user_id", in.UserID)
	return in, nil
}

// StoreMemory persists a memory entry. ID and Timestamp are assigned when
// absent; an importance of exactly 0 is treated as unset and defaults to 0.5.
// Entries with importance above 0.7 also enter the important cache after a
// successful durable write.
func (m *Manager) StoreMemory(ctx context.Context, entry *store.MemoryEntry) (*store.MemoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Category == "" {
		entry.Category = "general"
	}
	if entry.Importance == 0 {
		entry.Importance = defaultImportance
	}
	if entry.Importance < 0 || entry.Importance > 1 {
		return nil, &ValidationError{Field: "importance", Reason: fmt.Sprintf("%v is outside [0.0, 1.0]", entry.Importance)}
	}

	if err := m.store.SaveMemoryEntry(ctx, entry); err != nil {
		return nil, err
	}

	if entry.Importance > importanceCacheThreshold {
		m.important.Insert(entry)
	}

	m.logger.Debug("stored memory entry", "id", entry.ID, "category", entry.Category, "importance", entry.Importance)
	return entry, nil
}

// GetRecentInteractions returns the newest interactions, newest first, at
// most limit records. With a userID the durable store is queried directly and
// failures are returned. Without one the recency cache is merged with durable
// rows not already cached; if the store is unavailable the cache alone serves
// the query.
func (m *Manager) GetRecentInteractions(ctx context.Context, userID string, limit int) ([]*store.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}

	if userID != "" {
		return m.store.ListInteractionsByUser(ctx, userID, limit)
	}

	cached := m.recent.Snapshot()

	fromStore, err := m.store.ListRecentInteractions(ctx, m.recent.IDs(), limit)
	if err != nil {
		m.logger.Warn("backing store unavailable, serving recent interactions from cache", "error", err)
		fromStore = nil
	}

	merged := append(cached, fromStore...)
	sortInteractionsByTimestampDesc(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// SearchMemory finds memory entries matching a case-insensitive substring
// query against content and tag text, optionally filtered by category.
// The important cache is consulted first without I/O, then the durable store;
// cache hits win de-duplication by id. Results order by importance
// descending, then timestamp descending — importance dominates recency.
// If the store is unavailable, cache hits alone are returned.
func (m *Manager) SearchMemory(ctx context.Context, query, category string, limit int) ([]*store.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	now := time.Now().UTC()
	lowered := strings.ToLower(query)

	results := m.important.Match(lowered, category, now)
	seen := make(map[string]bool, len(results))
	for _, entry := range results {
		seen[entry.ID] = true
	}

	fromStore, err := m.store.SearchMemoryEntries(ctx, query, category, now, limit)
	if err != nil {
		m.logger.Warn("backing store unavailable, serving memory search from cache", "error", err)
		fromStore = nil
	}
	for _, entry := range fromStore {
		if !seen[entry.ID] {
			results = append(results, entry)
			seen[entry.ID] = true
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Importance != results[j].Importance {
			return results[i].Importance > results[j].Importance
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CleanupExpired deletes every memory entry whose expiry is strictly before
// now, from the durable store and the important cache, atomically per
// invocation. Returns the number of entries removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := m.store.DeleteExpiredEntries(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	m.important.Remove(ids...)
	return len(ids), nil
}

// HealthCheck reports durable record counts and cache sizes. It never returns
// an error: store failures yield an "error" status instead.
func (m *Manager) HealthCheck(ctx context.Context) *Health {
	h := &Health{
		Status:             "healthy",
		RecentCacheSize:    m.recent.Len(),
		ImportantCacheSize: m.important.Len(),
		Timestamp:          time.Now().UTC(),
	}

	interactions, entries, err := m.store.Counts(ctx)
	if err != nil {
		m.logger.Error("memory health check failed", "error", err)
		h.Status = "error"
		h.Error = err.Error()
		return h
	}

	h.InteractionCount = interactions
	h.MemoryEntryCount = entries
	return h
}

// sortInteractionsByTimestampDesc orders interactions newest first.
func sortInteractionsByTimestampDesc(interactions []*store.Interaction) {
	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].Timestamp.After(interactions[j].Timestamp)
	})
}
