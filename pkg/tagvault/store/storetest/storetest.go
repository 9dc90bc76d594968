// Package storetest is the behavioural suite every store.Store backend runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertIfAbsent", func(t *testing.T) { testInsertIfAbsent(t, newStore(t)) })
	t.Run("ExistingNames", func(t *testing.T) { testExistingNames(t, newStore(t)) })
	t.Run("ListAllOrdering", func(t *testing.T) { testListAllOrdering(t, newStore(t)) })
	t.Run("CaseSensitiveNames", func(t *testing.T) { testCaseSensitive(t, newStore(t)) })
	t.Run("EmptyCategoryDefaults", func(t *testing.T) { testEmptyCategory(t, newStore(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, newStore(t)) })
	t.Run("ConcurrentInsertSameName", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
}

func testInsertIfAbsent(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	inserted, err := st.InsertIfAbsent(ctx, "heavy metal", "Core Genre Family")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.InsertIfAbsent(ctx, "heavy metal", "Mood / Emotion")
	require.NoError(t, err)
	assert.False(t, inserted, "second insert must be a no-op")

	tags, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "heavy metal", tags[0].Name)
	assert.Equal(t, "Core Genre Family", tags[0].Category, "category is immutable")
	assert.NotEmpty(t, tags[0].ID)
	assert.False(t, tags[0].CreatedAt.IsZero())
}

func testExistingNames(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	got, err := st.ExistingNames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, name := range []string{"a", "b", "c"} {
		_, err := st.InsertIfAbsent(ctx, name, taxonomy.Fallback)
		require.NoError(t, err)
	}

	got, err = st.ExistingNames(ctx, []string{"b", "z", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}, "b": {}}, got)

	// more candidates than a single bound-parameter chunk
	many := make([]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		many = append(many, fmt.Sprintf("missing-%d", i))
	}
	many = append(many, "c")
	got, err = st.ExistingNames(ctx, many)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c": {}}, got)
}

func testListAllOrdering(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	rows := []struct{ name, category string }{
		{"synthwave", "Sub-Genre & Fusion Styles"},
		{"rock", "Core Genre Family"},
		{"80s", "Era / Time-Period Vibe"},
		{"jazz", "Core Genre Family"},
		{"Blues", "Core Genre Family"},
		{"70s", "Era / Time-Period Vibe"},
	}
	for _, r := range rows {
		_, err := st.InsertIfAbsent(ctx, r.name, r.category)
		require.NoError(t, err)
	}

	tags, err := st.ListAll(ctx)
	require.NoError(t, err)

	var got [][2]string
	for _, tag := range tags {
		got = append(got, [2]string{tag.Category, tag.Name})
	}
	assert.Equal(t, [][2]string{
		{"Core Genre Family", "Blues"},
		{"Core Genre Family", "jazz"},
		{"Core Genre Family", "rock"},
		{"Era / Time-Period Vibe", "70s"},
		{"Era / Time-Period Vibe", "80s"},
		{"Sub-Genre & Fusion Styles", "synthwave"},
	}, got)
}

func testCaseSensitive(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	for _, name := range []string{"Rock", "rock"} {
		inserted, err := st.InsertIfAbsent(ctx, name, "Core Genre Family")
		require.NoError(t, err)
		assert.True(t, inserted, name)
	}

	got, err := st.ExistingNames(ctx, []string{"ROCK", "rock"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"rock": {}}, got)
}

func testEmptyCategory(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	inserted, err := st.InsertIfAbsent(ctx, "mystery", "")
	require.NoError(t, err)
	require.True(t, inserted)

	tags, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, taxonomy.Fallback, tags[0].Category)
}

func testCounts(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, r := range []struct{ name, category string }{
		{"rock", "Core Genre Family"},
		{"jazz", "Core Genre Family"},
		{"sad", "Mood / Emotion"},
	} {
		_, err := st.InsertIfAbsent(ctx, r.name, r.category)
		require.NoError(t, err)
	}

	n, err = st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	counts, err := st.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Core Genre Family": 2, "Mood / Emotion": 1}, counts)
}

func testConcurrentInsert(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := st.InsertIfAbsent(ctx, "contested", "Mood / Emotion")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if inserted {
				wins++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, wins, "exactly one insert must win")

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
