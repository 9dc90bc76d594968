package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/tagvault/pkg/tagvault/classify"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/store/memstore"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// scriptedGenerator answers every prompt with the same text and counts calls.
type scriptedGenerator struct {
	calls    atomic.Int32
	response string
	err      error
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return g.response, g.err
}

// flakyStore fails inserts for the listed names.
type flakyStore struct {
	store.Store
	failInsert   map[string]bool
	failExisting bool
}

func (f *flakyStore) ExistingNames(ctx context.Context, names []string) (map[string]struct{}, error) {
	if f.failExisting {
		return nil, store.Wrap(errors.New("disk I/O error"), "lookup names")
	}
	return f.Store.ExistingNames(ctx, names)
}

func (f *flakyStore) InsertIfAbsent(ctx context.Context, name, category string) (bool, error) {
	if f.failInsert[name] {
		return false, store.Wrap(errors.New("database is locked"), "insert tag")
	}
	return f.Store.InsertIfAbsent(ctx, name, category)
}

func newService(st store.Store, gen classify.Generator) *Service {
	return New(st, classify.New(gen, nil, classify.Options{}))
}

func categories(t *testing.T, st store.Store) map[string]string {
	t.Helper()
	tags, err := st.ListAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[tag.Name] = tag.Category
	}
	return out
}

func TestIngestClassifiesNewTags(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: "```json\n{\"heavy metal\": 3, \"slow build up\": 9, \"80s\": 2}\n```"}
	svc := newService(st, gen)

	res, err := svc.Ingest(context.Background(), []string{"heavy metal", "slow build up", "80s"})
	require.NoError(t, err)

	assert.Equal(t, Result{Received: 3, New: 3, Added: 3}, res)
	assert.Equal(t, map[string]string{
		"heavy metal":   "Core Genre Family",
		"slow build up": "Rhythmic & Structural Traits",
		"80s":           "Era / Time-Period Vibe",
	}, categories(t, st))
}

func TestIngestIsIdempotent(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: `{"rock": 3}`}
	svc := newService(st, gen)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, []string{"rock"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added)

	second, err := svc.Ingest(ctx, []string{"rock"})
	require.NoError(t, err)
	assert.Equal(t, Result{Received: 1, New: 0, Added: 0}, second)

	assert.EqualValues(t, 1, gen.calls.Load(), "known tags must not reach the classifier")
	n, _ := st.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestIngestCollapsesInBatchDuplicates(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: `{"x": 7}`}
	svc := newService(st, gen)

	res, err := svc.Ingest(context.Background(), []string{"x", "x"})
	require.NoError(t, err)

	assert.Equal(t, Result{Received: 2, New: 1, Added: 1}, res)
	assert.Equal(t, map[string]string{"x": "Mood / Emotion"}, categories(t, st))
}

func TestIngestSkipsClassifierWhenNothingNew(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := st.InsertIfAbsent(ctx, name, "Mood / Emotion")
		require.NoError(t, err)
	}
	gen := &scriptedGenerator{response: `{}`}

	res, err := newService(st, gen).Ingest(ctx, []string{"b", "a", "b"})
	require.NoError(t, err)

	assert.Zero(t, res.Added)
	assert.Zero(t, res.New)
	assert.Zero(t, gen.calls.Load())
}

func TestIngestFallbackStillStores(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{err: errors.New("429 quota exceeded")}

	res, err := newService(st, gen).Ingest(context.Background(), []string{"glitch", "ambient"})
	require.NoError(t, err, "classifier failures must not escape")

	assert.True(t, res.Fallback)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, map[string]string{
		"glitch":  taxonomy.Fallback,
		"ambient": taxonomy.Fallback,
	}, categories(t, st))
}

// cancelingGenerator cancels the caller's context mid-call, as a client
// disconnecting during classification would.
type cancelingGenerator struct {
	cancel   context.CancelFunc
	response string
}

func (g *cancelingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.cancel()
	return g.response, ctx.Err()
}

func TestIngestCompletesAfterCallerCancels(t *testing.T) {
	st := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &cancelingGenerator{cancel: cancel, response: `{"glitch": 4, "ambient": 8}`}

	res, err := newService(st, gen).Ingest(ctx, []string{"glitch", "ambient"})
	require.NoError(t, err)
	assert.NotErrorIs(t, err, internalerr.ErrStorage)

	assert.Equal(t, Result{Received: 2, New: 2, Added: 2}, res)
	assert.Equal(t, map[string]string{
		"glitch":  "Sub-Genre & Fusion Styles",
		"ambient": "Production & Mix Aesthetics",
	}, categories(t, st))
}

func TestIngestDefaultsOmittedTags(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: `{"piano": 5}`}

	res, err := newService(st, gen).Ingest(context.Background(), []string{"piano", "forgotten"})
	require.NoError(t, err)

	assert.False(t, res.Fallback)
	assert.Equal(t, map[string]string{
		"piano":     "Instrumentation & Sound Sources",
		"forgotten": taxonomy.Fallback,
	}, categories(t, st))
}

type fixedClassifier map[string]string

func (f fixedClassifier) Classify(ctx context.Context, tags []string) classify.Result {
	return classify.Result{Categories: f, Outcome: classify.OutcomeOK}
}

func TestIngestNormalizesForeignLabels(t *testing.T) {
	st := memstore.New()
	svc := New(st, fixedClassifier{
		"a": "mood / emotion",
		"b": "not a category",
		"c": "Vocal Characteristics",
	})

	_, err := svc.Ingest(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"a": "Mood / Emotion",
		"b": taxonomy.Fallback,
		"c": "Vocal Characteristics",
	}, categories(t, st))
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	gen := &scriptedGenerator{response: `{}`}
	svc := newService(memstore.New(), gen)

	for _, input := range [][]string{nil, {}, {"", "   ", "\t"}} {
		_, err := svc.Ingest(context.Background(), input)
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "%q", input)
	}
	assert.Zero(t, gen.calls.Load())
}

func TestIngestDropsBlankEntries(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: `{"lo-fi": 8}`}

	res, err := newService(st, gen).Ingest(context.Background(), []string{"", "lo-fi", "  "})
	require.NoError(t, err)

	assert.Equal(t, Result{Received: 1, New: 1, Added: 1}, res)
}

func TestIngestContinuesPastStorageErrors(t *testing.T) {
	st := &flakyStore{Store: memstore.New(), failInsert: map[string]bool{"b": true}}
	gen := &scriptedGenerator{response: `{"a": 1, "b": 2, "c": 3}`}

	res, err := newService(st, gen).Ingest(context.Background(), []string{"a", "b", "c"})

	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrStorage)
	assert.NotErrorIs(t, err, internalerr.ErrClassification)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, map[string]string{
		"a": "Tempo & Meter",
		"c": "Core Genre Family",
	}, categories(t, st.Store))
}

func TestIngestLookupFailureIsStorageError(t *testing.T) {
	st := &flakyStore{Store: memstore.New(), failExisting: true}
	gen := &scriptedGenerator{response: `{}`}

	_, err := newService(st, gen).Ingest(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, internalerr.ErrStorage)
	assert.Zero(t, gen.calls.Load())
}

func TestIngestConcurrentBatchesStoreEachNameOnce(t *testing.T) {
	st := memstore.New()
	gen := &scriptedGenerator{response: `{"shared": 7}`}
	svc := newService(st, gen)

	const workers = 8
	var (
		wg    sync.WaitGroup
		added atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Ingest(context.Background(), []string{"shared", fmt.Sprintf("own-%d", i)})
			if err != nil {
				t.Errorf("Ingest: %v", err)
				return
			}
			added.Add(int32(res.Added))
		}(i)
	}
	wg.Wait()

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, workers+1, n)
	assert.EqualValues(t, workers+1, added.Load(), "added counts must sum to the records created")
}
