// ABOUTME: Store interface and data types for relay-gateway persistence
// ABOUTME: Defines Interaction, MemoryEntry structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a durable I/O failure. Writes that fail with a
// PersistenceError leave the in-memory caches untouched.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Interaction represents one turn of conversation: a user input paired with
// an agent output. Interactions are immutable after creation.
type Interaction struct {
	ID         string
	Timestamp  time.Time
	Source     string // channel or topic where the interaction occurred
	UserID     string
	InputText  string
	OutputText string
	Metadata   map[string]any
	SessionID  string
}

// MemoryEntry is a durable fact/preference/experience with relevance metadata.
// Importance is in [0.0, 1.0]. An entry whose ExpiresAt has passed is treated
// as logically deleted even before a cleanup pass removes the row.
type MemoryEntry struct {
	ID         string
	Timestamp  time.Time
	Category   string // free-form classification tag: "fact", "preference", ...
	Content    string
	Tags       []string
	Importance float64
	ExpiresAt  *time.Time
}

// Expired reports whether the entry is past its expiry at the given instant.
// Entries without an expiry never expire.
func (e *MemoryEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// MatchesQuery reports whether the entry matches a case-insensitive substring
// query against its content or joined tag text. The query must already be
// lowercased by the caller.
func (e *MemoryEntry) MatchesQuery(loweredQuery string) bool {
	if containsFold(e.Content, loweredQuery) {
		return true
	}
	for _, tag := range e.Tags {
		if containsFold(tag, loweredQuery) {
			return true
		}
	}
	return false
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, loweredSubstr string) bool {
	return strings.Contains(strings.ToLower(s), loweredSubstr)
}

// Store defines the interface for interaction and memory entry persistence
type Store interface {
	// Interactions
	SaveInteraction(ctx context.Context, in *Interaction) error
	ListInteractionsByUser(ctx context.Context, userID string, limit int) ([]*Interaction, error)
	// ListRecentInteractions returns the newest interactions, skipping any
	// whose id is in excludeIDs (used for cache-first merges).
	ListRecentInteractions(ctx context.Context, excludeIDs []string, limit int) ([]*Interaction, error)

	// Memory entries
	SaveMemoryEntry(ctx context.Context, entry *MemoryEntry) error
	// SearchMemoryEntries matches query case-insensitively against content and
	// tags, optionally filtered by category. Entries past expiry at `now` are
	// never returned.
	SearchMemoryEntries(ctx context.Context, query, category string, now time.Time, limit int) ([]*MemoryEntry, error)
	// DeleteExpiredEntries removes every entry whose expiry is strictly before
	// now, atomically, and returns the ids of the removed rows.
	DeleteExpiredEntries(ctx context.Context, now time.Time) ([]string, error)

	// Counts returns total row counts for health reporting.
	Counts(ctx context.Context) (interactions, memoryEntries int, err error)

	Close() error
}
