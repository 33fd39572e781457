// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides interaction/memory-entry persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. Fixed width keeps the
// lexicographic order of stored timestamps identical to their time order, so
// ORDER BY timestamp on the text column is correct.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			source TEXT NOT NULL,
			user_id TEXT NOT NULL,
			input_text TEXT NOT NULL,
			output_text TEXT NOT NULL,
			metadata TEXT,
			session_id TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
		CREATE INDEX IF NOT EXISTS idx_interactions_user_id ON interactions(user_id);
		CREATE INDEX IF NOT EXISTS idx_interactions_source ON interactions(source);

		CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT,
			importance REAL NOT NULL DEFAULT 0.5,
			expires_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_memory_timestamp ON memory_entries(timestamp);
		CREATE INDEX IF NOT EXISTS idx_memory_category ON memory_entries(category);
		CREATE INDEX IF NOT EXISTS idx_memory_importance ON memory_entries(importance);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveInteraction inserts an interaction row. The caller is responsible for
// assigning ID and Timestamp; the row is never updated afterwards.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, in *Interaction) error {
	metadata, err := encodeJSON(in.Metadata)
	if err != nil {
		return &PersistenceError{Op: "save interaction", Err: err}
	}

	query := `
		INSERT INTO interactions (id, timestamp, source, user_id, input_text, output_text, metadata, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		in.ID,
		in.Timestamp.UTC().Format(timeLayout),
		in.Source,
		in.UserID,
		in.InputText,
		in.OutputText,
		metadata,
		nullString(in.SessionID),
	)
	if err != nil {
		return &PersistenceError{Op: "save interaction", Err: err}
	}

	s.logger.Debug("saved interaction", "id", in.ID, "source", in.Source, "user_id", in.UserID)
	return nil
}

// ListInteractionsByUser returns the newest interactions for a user, newest first.
func (s *SQLiteStore) ListInteractionsByUser(ctx context.Context, userID string, limit int) ([]*Interaction, error) {
	query := `
		SELECT id, timestamp, source, user_id, input_text, output_text, metadata, session_id
		FROM interactions
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list interactions by user", Err: err}
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// ListRecentInteractions returns the newest interactions across all users,
// skipping ids present in excludeIDs.
func (s *SQLiteStore) ListRecentInteractions(ctx context.Context, excludeIDs []string, limit int) ([]*Interaction, error) {
	query := `
		SELECT id, timestamp, source, user_id, input_text, output_text, metadata, session_id
		FROM interactions
	`
	args := make([]any, 0, len(excludeIDs)+1)
	if len(excludeIDs) > 0 {
		placeholders := strings.Repeat("?,", len(excludeIDs))
		query += ` WHERE id NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "list recent interactions", Err: err}
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// scanInteractions reads all interaction rows from a result set.
func scanInteractions(rows *sql.Rows) ([]*Interaction, error) {
	var interactions []*Interaction
	for rows.Next() {
		var in Interaction
		var timestampStr string
		var metadata, sessionID sql.NullString

		if err := rows.Scan(&in.ID, &timestampStr, &in.Source, &in.UserID, &in.InputText, &in.OutputText, &metadata, &sessionID); err != nil {
			return nil, fmt.Errorf("scanning interaction row: %w", err)
		}

		ts, err := time.Parse(timeLayout, timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing interaction timestamp: %w", err)
		}
		in.Timestamp = ts

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &in.Metadata); err != nil {
				return nil, fmt.Errorf("decoding interaction metadata: %w", err)
			}
		}
		if sessionID.Valid {
			in.SessionID = sessionID.String
		}

		interactions = append(interactions, &in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interaction rows: %w", err)
	}
	return interactions, nil
}

// SaveMemoryEntry inserts a memory entry row.
func (s *SQLiteStore) SaveMemoryEntry(ctx context.Context, entry *MemoryEntry) error {
	tags, err := encodeJSON(entry.Tags)
	if err != nil {
		return &PersistenceError{Op: "save memory entry", Err: err}
	}

	var expiresAt any
	if entry.ExpiresAt != nil {
		expiresAt = entry.ExpiresAt.UTC().Format(timeLayout)
	}

	query := `
		INSERT INTO memory_entries (id, timestamp, category, content, tags, importance, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp.UTC().Format(timeLayout),
		entry.Category,
		entry.Content,
		tags,
		entry.Importance,
		expiresAt,
	)
	if err != nil {
		return &PersistenceError{Op: "save memory entry", Err: err}
	}

	s.logger.Debug("saved memory entry", "id", entry.ID, "category", entry.Category, "importance", entry.Importance)
	return nil
}

// SearchMemoryEntries matches query case-insensitively against content and the
// joined tag text, optionally filtered by category. Entries whose expiry is at
// or before now are excluded. Results are ordered by importance descending,
// then timestamp descending.
func (s *SQLiteStore) SearchMemoryEntries(ctx context.Context, query, category string, now time.Time, limit int) ([]*MemoryEntry, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	sqlQuery := `
		SELECT id, timestamp, category, content, tags, importance, expires_at
		FROM memory_entries
		WHERE (lower(content) LIKE ? OR lower(coalesce(tags, '')) LIKE ?)
		  AND (expires_at IS NULL OR expires_at >= ?)
	`
	args := []any{pattern, pattern, now.UTC().Format(timeLayout)}

	if category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, category)
	}

	sqlQuery += ` ORDER BY importance DESC, timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "search memory entries", Err: err}
	}
	defer rows.Close()

	var entries []*MemoryEntry
	for rows.Next() {
		entry, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memory entry rows: %w", err)
	}
	return entries, nil
}

// scanMemoryEntry reads one memory entry from the current row.
func scanMemoryEntry(rows *sql.Rows) (*MemoryEntry, error) {
	var entry MemoryEntry
	var timestampStr string
	var tags, expiresAt sql.NullString

	if err := rows.Scan(&entry.ID, &timestampStr, &entry.Category, &entry.Content, &tags, &entry.Importance, &expiresAt); err != nil {
		return nil, fmt.Errorf("scanning memory entry row: %w", err)
	}

	ts, err := time.Parse(timeLayout, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing memory entry timestamp: %w", err)
	}
	entry.Timestamp = ts

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &entry.Tags); err != nil {
			return nil, fmt.Errorf("decoding memory entry tags: %w", err)
		}
	}
	if expiresAt.Valid {
		t, err := time.Parse(timeLayout, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing memory entry expiry: %w", err)
		}
		entry.ExpiresAt = &t
	}

	return &entry, nil
}

// DeleteExpiredEntries removes every memory entry whose expiry is strictly
// before now. The whole batch commits or none of it does. Returns the ids of
// the deleted rows so callers can purge their caches.
func (s *SQLiteStore) DeleteExpiredEntries(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Op: "delete expired entries", Err: err}
	}
	defer tx.Rollback()

	cutoff := now.UTC().Format(timeLayout)

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM memory_entries
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, cutoff)
	if err != nil {
		return nil, &PersistenceError{Op: "delete expired entries", Err: err}
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, &PersistenceError{Op: "delete expired entries", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, &PersistenceError{Op: "delete expired entries", Err: err}
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM memory_entries
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, cutoff); err != nil {
		return nil, &PersistenceError{Op: "delete expired entries", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Op: "delete expired entries", Err: err}
	}

	s.logger.Info("cleaned up expired memory entries", "count", len(ids))
	return ids, nil
}

// Counts returns total row counts for health reporting.
func (s *SQLiteStore) Counts(ctx context.Context) (interactions, memoryEntries int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&interactions); err != nil {
		return 0, 0, &PersistenceError{Op: "count interactions", Err: err}
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&memoryEntries); err != nil {
		return 0, 0, &PersistenceError{Op: "count memory entries", Err: err}
	}
	return interactions, memoryEntries, nil
}

// encodeJSON serializes v to JSON text, returning nil for empty values so the
// column stays NULL.
func encodeJSON(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
