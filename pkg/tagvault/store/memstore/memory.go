package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Store is an in-memory implementation of store.Store for tests and
// throwaway runs.
type Store struct {
	mu   sync.RWMutex
	tags map[string]store.Tag
	now  func() time.Time
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		tags: make(map[string]store.Tag),
		now:  time.Now,
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// ListAll returns a copy of every tag ordered by category, then name.
func (s *Store) ListAll(ctx context.Context) ([]store.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Tag, 0, len(s.tags))
	for _, tag := range s.tags {
		out = append(out, tag)
	}
	store.SortTags(out)
	return out, nil
}

func (s *Store) ExistingNames(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]struct{})
	for _, name := range candidates {
		if _, ok := s.tags[name]; ok {
			found[name] = struct{}{}
		}
	}
	return found, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, name, category string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.Wrap(err, "insert tag")
	}
	if category == "" {
		category = taxonomy.Fallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[name]; ok {
		return false, nil
	}
	now := s.now().UTC()
	s.tags[name] = store.Tag{
		ID:        store.NewID(now),
		Name:      name,
		Category:  category,
		CreatedAt: now,
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags), nil
}

func (s *Store) CategoryCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, tag := range s.tags {
		counts[tag.Category]++
	}
	return counts, nil
}
