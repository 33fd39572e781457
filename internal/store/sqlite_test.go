// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers interaction persistence, memory search, expiry cleanup, and ordering

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestSaveAndListInteractionsByUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	in := &Interaction{
		ID:         "int-1",
		Timestamp:  time.Now().UTC(),
		Source:     "discord",
		UserID:     "user-1",
		InputText:  "what time is it",
		OutputText: "it is noon",
		SessionID:  "sess-1",
		Metadata:   map[string]any{"agent_id": "assistant"},
	}

	if err := store.SaveInteraction(ctx, in); err != nil {
		t.Fatalf("SaveInteraction failed: %v", err)
	}

	got, err := store.ListInteractionsByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListInteractionsByUser failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(got))
	}

	if got[0].ID != in.ID {
		t.Errorf("ID mismatch: got %q, want %q", got[0].ID, in.ID)
	}
	if got[0].InputText != in.InputText {
		t.Errorf("InputText mismatch: got %q, want %q", got[0].InputText, in.InputText)
	}
	if got[0].OutputText != in.OutputText {
		t.Errorf("OutputText mismatch: got %q, want %q", got[0].OutputText, in.OutputText)
	}
	if got[0].SessionID != in.SessionID {
		t.Errorf("SessionID mismatch: got %q, want %q", got[0].SessionID, in.SessionID)
	}
	if got[0].Metadata["agent_id"] != "assistant" {
		t.Errorf("Metadata mismatch: got %v", got[0].Metadata)
	}
	if !got[0].Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp mismatch: got %v, want %v", got[0].Timestamp, in.Timestamp)
	}
}

func TestListInteractionsByUser_NewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		in := &Interaction{
			ID:         fmt.Sprintf("int-%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Source:     "discord",
			UserID:     "user-1",
			InputText:  fmt.Sprintf("message %d", i),
			OutputText: "ok",
		}
		if err := store.SaveInteraction(ctx, in); err != nil {
			t.Fatalf("SaveInteraction failed: %v", err)
		}
	}

	got, err := store.ListInteractionsByUser(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("ListInteractionsByUser failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(got))
	}

	// Newest first
	for i, wantID := range []string{"int-4", "int-3", "int-2"} {
		if got[i].ID != wantID {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, wantID)
		}
	}
}

func TestListInteractionsByUser_FiltersOtherUsers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i, userID := range []string{"user-1", "user-2", "user-1"} {
		in := &Interaction{
			ID:         fmt.Sprintf("int-%d", i),
			Timestamp:  time.Now().UTC(),
			Source:     "discord",
			UserID:     userID,
			InputText:  "hi",
			OutputText: "hello",
		}
		if err := store.SaveInteraction(ctx, in); err != nil {
			t.Fatalf("SaveInteraction failed: %v", err)
		}
	}

	got, err := store.ListInteractionsByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListInteractionsByUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 interactions for user-1, got %d", len(got))
	}
	for _, in := range got {
		if in.UserID != "user-1" {
			t.Errorf("unexpected user %q in results", in.UserID)
		}
	}
}

func TestListRecentInteractions_ExcludesIDs(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		in := &Interaction{
			ID:         fmt.Sprintf("int-%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Source:     "slack",
			UserID:     "user-1",
			InputText:  "hi",
			OutputText: "hello",
		}
		if err := store.SaveInteraction(ctx, in); err != nil {
			t.Fatalf("SaveInteraction failed: %v", err)
		}
	}

	got, err := store.ListRecentInteractions(ctx, []string{"int-3", "int-2"}, 10)
	if err != nil {
		t.Fatalf("ListRecentInteractions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(got))
	}
	if got[0].ID != "int-1" || got[1].ID != "int-0" {
		t.Errorf("unexpected results: %q, %q", got[0].ID, got[1].ID)
	}
}

func TestSearchMemoryEntries_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	entry := &MemoryEntry{
		ID:         "mem-1",
		Timestamp:  time.Now().UTC(),
		Category:   "general",
		Content:    "The User Prefers Dark Mode",
		Importance: 0.5,
	}
	if err := store.SaveMemoryEntry(ctx, entry); err != nil {
		t.Fatalf("SaveMemoryEntry failed: %v", err)
	}

	got, err := store.SearchMemoryEntries(ctx, "dark mode", "", time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mem-1" {
		t.Fatalf("expected mem-1, got %v", got)
	}
}

func TestSearchMemoryEntries_MatchesTags(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	entry := &MemoryEntry{
		ID:         "mem-1",
		Timestamp:  time.Now().UTC(),
		Category:   "preferences",
		Content:    "uses vim",
		Tags:       []string{"editor", "tooling"},
		Importance: 0.5,
	}
	if err := store.SaveMemoryEntry(ctx, entry); err != nil {
		t.Fatalf("SaveMemoryEntry failed: %v", err)
	}

	got, err := store.SearchMemoryEntries(ctx, "tooling", "", time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected tag match, got %d results", len(got))
	}
	if len(got[0].Tags) != 2 || got[0].Tags[0] != "editor" {
		t.Errorf("tags did not round-trip: %v", got[0].Tags)
	}
}

func TestSearchMemoryEntries_CategoryFilter(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i, category := range []string{"preferences", "facts"} {
		entry := &MemoryEntry{
			ID:         fmt.Sprintf("mem-%d", i),
			Timestamp:  time.Now().UTC(),
			Category:   category,
			Content:    "coffee",
			Importance: 0.5,
		}
		if err := store.SaveMemoryEntry(ctx, entry); err != nil {
			t.Fatalf("SaveMemoryEntry failed: %v", err)
		}
	}

	got, err := store.SearchMemoryEntries(ctx, "coffee", "facts", time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 1 || got[0].Category != "facts" {
		t.Fatalf("category filter failed: %v", got)
	}
}

func TestSearchMemoryEntries_ExcludesExpired(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	entries := []*MemoryEntry{
		{ID: "expired", Timestamp: now, Category: "general", Content: "stale fact", Importance: 0.5, ExpiresAt: &past},
		{ID: "live", Timestamp: now, Category: "general", Content: "fresh fact", Importance: 0.5, ExpiresAt: &future},
		{ID: "eternal", Timestamp: now, Category: "general", Content: "permanent fact", Importance: 0.5},
	}
	for _, entry := range entries {
		if err := store.SaveMemoryEntry(ctx, entry); err != nil {
			t.Fatalf("SaveMemoryEntry failed: %v", err)
		}
	}

	got, err := store.SearchMemoryEntries(ctx, "fact", "", now, 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	for _, entry := range got {
		if entry.ID == "expired" {
			t.Error("expired entry appeared in search results")
		}
	}
}

func TestSearchMemoryEntries_OrderImportanceThenRecency(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	entries := []*MemoryEntry{
		{ID: "low-new", Timestamp: base.Add(2 * time.Second), Category: "general", Content: "note", Importance: 0.3},
		{ID: "high-old", Timestamp: base, Category: "general", Content: "note", Importance: 0.9},
		{ID: "high-new", Timestamp: base.Add(time.Second), Category: "general", Content: "note", Importance: 0.9},
	}
	for _, entry := range entries {
		if err := store.SaveMemoryEntry(ctx, entry); err != nil {
			t.Fatalf("SaveMemoryEntry failed: %v", err)
		}
	}

	got, err := store.SearchMemoryEntries(ctx, "note", "", time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}

	// Importance dominates; recency breaks ties
	for i, wantID := range []string{"high-new", "high-old", "low-new"} {
		if got[i].ID != wantID {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, wantID)
		}
	}
}

func TestDeleteExpiredEntries(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	entries := []*MemoryEntry{
		{ID: "expired-1", Timestamp: now, Category: "general", Content: "a", Importance: 0.5, ExpiresAt: &past},
		{ID: "expired-2", Timestamp: now, Category: "general", Content: "b", Importance: 0.5, ExpiresAt: &past},
		{ID: "live", Timestamp: now, Category: "general", Content: "c", Importance: 0.5, ExpiresAt: &future},
		{ID: "eternal", Timestamp: now, Category: "general", Content: "d", Importance: 0.5},
	}
	for _, entry := range entries {
		if err := store.SaveMemoryEntry(ctx, entry); err != nil {
			t.Fatalf("SaveMemoryEntry failed: %v", err)
		}
	}

	ids, err := store.DeleteExpiredEntries(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredEntries failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 deleted ids, got %d: %v", len(ids), ids)
	}

	// Survivors remain searchable
	got, err := store.SearchMemoryEntries(ctx, "", "", now, 10)
	if err != nil {
		t.Fatalf("SearchMemoryEntries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(got))
	}
	for _, entry := range got {
		if entry.ID == "expired-1" || entry.ID == "expired-2" {
			t.Errorf("expired entry %q survived cleanup", entry.ID)
		}
	}

	// Second pass is a no-op
	ids, err = store.DeleteExpiredEntries(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredEntries failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no further deletions, got %v", ids)
	}
}

func TestDeleteExpiredEntries_ExactExpiryNotDeleted(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	entry := &MemoryEntry{ID: "boundary", Timestamp: now, Category: "general", Content: "x", Importance: 0.5, ExpiresAt: &now}
	if err := store.SaveMemoryEntry(ctx, entry); err != nil {
		t.Fatalf("SaveMemoryEntry failed: %v", err)
	}

	// Expiry strictly before now; an entry expiring exactly now survives
	ids, err := store.DeleteExpiredEntries(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredEntries failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("entry expiring exactly at cutoff was deleted: %v", ids)
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		in := &Interaction{
			ID:         fmt.Sprintf("int-%d", i),
			Timestamp:  time.Now().UTC(),
			Source:     "cli",
			UserID:     "user-1",
			InputText:  "hi",
			OutputText: "hello",
		}
		if err := store.SaveInteraction(ctx, in); err != nil {
			t.Fatalf("SaveInteraction failed: %v", err)
		}
	}
	entry := &MemoryEntry{ID: "mem-1", Timestamp: time.Now().UTC(), Category: "general", Content: "x", Importance: 0.5}
	if err := store.SaveMemoryEntry(ctx, entry); err != nil {
		t.Fatalf("SaveMemoryEntry failed: %v", err)
	}

	interactions, memoryEntries, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if interactions != 3 {
		t.Errorf("interactions count: got %d, want 3", interactions)
	}
	if memoryEntries != 1 {
		t.Errorf("memory entries count: got %d, want 1", memoryEntries)
	}
}
