package store

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
)

// Store is the durable, deduplicated record of every known tag.
type Store interface {
	Close() error

	// ListAll returns every tag ordered by category, then name.
	ListAll(ctx context.Context) ([]Tag, error)
	// ExistingNames returns the subset of candidates already stored.
	ExistingNames(ctx context.Context, candidates []string) (map[string]struct{}, error)
	// InsertIfAbsent creates the tag unless the name exists. It reports
	// whether this call created the record; an existing name is not an error.
	InsertIfAbsent(ctx context.Context, name, category string) (bool, error)

	Count(ctx context.Context) (int, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
}

// Tag is a stored tag record. Category is fixed at creation.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID mints a sortable opaque tag identifier.
func NewID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

// SortTags orders tags by category, then name, in place.
func SortTags(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Category != tags[j].Category {
			return tags[i].Category < tags[j].Category
		}
		return tags[i].Name < tags[j].Name
	})
}

// UniqueStrings drops empty strings and duplicates, keeping first occurrences.
func UniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Error marks an unexpected failure of the backing store.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, internalerr.ErrStorage) hold for every store failure.
func (e *Error) Is(target error) bool { return target == internalerr.ErrStorage }

// Wrap records op and a stack trace on err and marks it as a storage error.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: errors.WithStack(err)}
}
