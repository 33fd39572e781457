// Package memory layers bounded in-process caches over the durable store.
//
// # Two-Tier Design
//
// The Manager keeps two caches next to the SQLite store:
//
//   - a recency cache holding the newest interactions (default 100), evicting
//     the oldest once full
//   - an important cache holding memory entries with importance above 0.7
//     (default 50)
//
// Writes are write-through: the durable store is written first and caches are
// only updated after success, so a cache never holds a record the store
// rejected. Warm preloads both caches from the store at startup so degraded
// reads work immediately after a restart.
//
// # Degraded Reads
//
// Reads that a cache can serve degrade gracefully when the store is
// unavailable: global recent-interaction queries and memory searches fall
// back to cache-only results with a warning. User-scoped interaction queries
// have no cache to fall back on and fail explicitly.
//
// # Expiry
//
// Memory entries may carry an expiry. Expired entries never appear in search
// results; CleanupExpired deletes them from the store and the important cache
// in one pass.
package memory
