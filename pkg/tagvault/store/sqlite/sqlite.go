package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// maxBindVars caps the placeholders used by one IN (...) lookup.
const maxBindVars = 500

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) a SQLite tag database with WAL mode enabled.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, store.Wrap(err, "open sqlite")
	}

	// One connection serializes writers and keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, store.Wrap(err, p)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, store.Wrap(err, "init schema")
	}

	return &sqliteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '%s',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tags_category_name ON tags(category, name);
`, strings.ReplaceAll(taxonomy.Fallback, "'", "''"))

	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]store.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, created_at FROM tags ORDER BY category, name")
	if err != nil {
		return nil, store.Wrap(err, "list tags")
	}
	defer rows.Close()

	var tags []store.Tag
	for rows.Next() {
		var (
			tag     store.Tag
			created string
		)
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Category, &created); err != nil {
			return nil, store.Wrap(err, "scan tag")
		}
		if created != "" {
			tag.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(err, "list tags")
	}
	return tags, nil
}

func (s *sqliteStore) ExistingNames(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	names := store.UniqueStrings(candidates)
	found := make(map[string]struct{})

	for start := 0; start < len(names); start += maxBindVars {
		end := start + maxBindVars
		if end > len(names) {
			end = len(names)
		}
		chunk := names[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, name := range chunk {
			args[i] = name
		}

		rows, err := s.db.QueryContext(ctx,
			"SELECT name FROM tags WHERE name IN ("+placeholders+")", args...)
		if err != nil {
			return nil, store.Wrap(err, "lookup names")
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return nil, store.Wrap(err, "scan name")
			}
			found[name] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, store.Wrap(err, "lookup names")
		}
	}
	return found, nil
}

func (s *sqliteStore) InsertIfAbsent(ctx context.Context, name, category string) (bool, error) {
	if category == "" {
		category = taxonomy.Fallback
	}
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, category, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, store.NewID(now), name, category, now.Format(time.RFC3339Nano))
	if err != nil {
		return false, store.Wrap(err, "insert tag")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Wrap(err, "insert tag")
	}
	return n == 1, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&n); err != nil {
		return 0, store.Wrap(err, "count tags")
	}
	return n, nil
}

func (s *sqliteStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM tags GROUP BY category")
	if err != nil {
		return nil, store.Wrap(err, "count categories")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, store.Wrap(err, "scan category count")
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(err, "count categories")
	}
	return counts, nil
}
