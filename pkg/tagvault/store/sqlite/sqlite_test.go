package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/store/storetest"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := Open(context.Background(), filepath.Join(t.TempDir(), "tags.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return st
	})
}

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 table, got %d", count)
	}
}

// TestReopenPreservesData tests that tags survive closing and reopening the database
func TestReopenPreservesData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := st.InsertIfAbsent(ctx, "dream pop", "Sub-Genre & Fusion Styles"); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	st.Close()

	st, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer st.Close()

	inserted, err := st.InsertIfAbsent(ctx, "dream pop", taxonomy.Fallback)
	if err != nil {
		t.Fatalf("InsertIfAbsent after reopen: %v", err)
	}
	if inserted {
		t.Fatal("expected existing tag to be kept after reopen")
	}

	tags, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(tags) != 1 || tags[0].Category != "Sub-Genre & Fusion Styles" {
		t.Fatalf("unexpected tags after reopen: %+v", tags)
	}
}

// TestColumnDefaultIsFallback checks rows written without a category
func TestColumnDefaultIsFallback(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	db := st.(*sqliteStore).db
	if _, err := db.ExecContext(ctx,
		"INSERT INTO tags (id, name, created_at) VALUES ('legacy', 'raw', ?)",
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("insert without category: %v", err)
	}

	var category string
	if err := db.QueryRowContext(ctx, "SELECT category FROM tags WHERE name = 'raw'").Scan(&category); err != nil {
		t.Fatalf("select: %v", err)
	}
	if category != taxonomy.Fallback {
		t.Errorf("default category = %q, want %q", category, taxonomy.Fallback)
	}
}

func TestWALModeEnabled(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	var mode string
	if err := st.(*sqliteStore).db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestClosedStoreReportsStorageError(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st.Close()

	_, err = st.InsertIfAbsent(ctx, "x", taxonomy.Fallback)
	if !errors.Is(err, internalerr.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
