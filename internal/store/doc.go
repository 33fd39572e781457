// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - Interaction: one conversation turn (input and output text) with source,
//     user, session, and free-form metadata
//   - MemoryEntry: one remembered fact with category, tags, an importance
//     weight in [0.0, 1.0], and an optional expiry
//
// Both are immutable once written. Timestamps are stored as fixed-width
// nanosecond text so the column's lexicographic order matches time order.
//
// # Store Interface
//
// The Store interface covers saving and querying both models, expiry cleanup,
// and record counts. SQLiteStore is the only implementation; tests substitute
// their own failing or recording stubs.
//
// # Error Handling
//
// Write failures surface as *PersistenceError naming the failed operation.
// Lookups that find nothing return ErrNotFound.
package store
