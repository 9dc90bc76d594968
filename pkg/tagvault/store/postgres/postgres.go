// Package postgres is the store.Store backend for shared deployments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

type pgStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to dsn and creates the tags table when missing.
func Open(ctx context.Context, dsn string) (store.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrap(err, "ping postgres")
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, wrap(err, "init schema")
	}
	return &pgStore{pool: pool, now: time.Now}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '%s',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tags_category_name ON tags (category, name);
`, taxonomy.Fallback))
	return err
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *pgStore) ListAll(ctx context.Context) ([]store.Tag, error) {
	// COLLATE "C" keeps the byte-wise order the other backends use.
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, created_at FROM tags
		ORDER BY category COLLATE "C", name COLLATE "C"`)
	if err != nil {
		return nil, wrap(err, "list tags")
	}
	defer rows.Close()

	var tags []store.Tag
	for rows.Next() {
		var tag store.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Category, &tag.CreatedAt); err != nil {
			return nil, wrap(err, "scan tag")
		}
		tag.CreatedAt = tag.CreatedAt.UTC()
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "list tags")
	}
	return tags, nil
}

func (s *pgStore) ExistingNames(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	names := store.UniqueStrings(candidates)
	if len(names) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx, "SELECT name FROM tags WHERE name = ANY($1)", names)
	if err != nil {
		return nil, wrap(err, "lookup names")
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap(err, "scan name")
		}
		found[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "lookup names")
	}
	return found, nil
}

func (s *pgStore) InsertIfAbsent(ctx context.Context, name, category string) (bool, error) {
	if category == "" {
		category = taxonomy.Fallback
	}
	now := s.now().UTC()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tags (id, name, category, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING`,
		store.NewID(now), name, category, now)
	if err != nil {
		return false, wrap(err, "insert tag")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tags").Scan(&n); err != nil {
		return 0, wrap(err, "count tags")
	}
	return n, nil
}

func (s *pgStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT category, COUNT(*) FROM tags GROUP BY category")
	if err != nil {
		return nil, wrap(err, "count categories")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, wrap(err, "scan category count")
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "count categories")
	}
	return counts, nil
}

// wrap tags server-side failures with their SQLSTATE.
func wrap(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		op = fmt.Sprintf("%s (sqlstate %s)", op, pgErr.Code)
	}
	return store.Wrap(err, op)
}
