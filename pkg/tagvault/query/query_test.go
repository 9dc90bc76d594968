package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
)

func sample() []store.Tag {
	return []store.Tag{
		{Name: "rock", Category: "Core Genre Family"},
		{Name: "Dream Pop", Category: "Sub-Genre & Fusion Styles"},
		{Name: "80s", Category: "Era / Time-Period Vibe"},
		{Name: "blues rock", Category: "Core Genre Family"},
		{Name: "anthemic", Category: "Mood / Emotion"},
	}
}

func names(tags []store.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.Name
	}
	return out
}

func TestApplyDefaultSortIsCategoryThenName(t *testing.T) {
	got := Filter{}.Apply(sample())
	assert.Equal(t, []string{"blues rock", "rock", "80s", "anthemic", "Dream Pop"}, names(got))
}

func TestApplySearchIsCaseInsensitive(t *testing.T) {
	got := Filter{Search: "  ROCK ", Sort: SortAZ}.Apply(sample())
	assert.Equal(t, []string{"blues rock", "rock"}, names(got))
}

func TestApplyCategoryFilterIsOr(t *testing.T) {
	got := Filter{
		Categories: []string{"Mood / Emotion", "Era / Time-Period Vibe"},
		Sort:       SortZA,
	}.Apply(sample())
	assert.Equal(t, []string{"anthemic", "80s"}, names(got))
}

func TestApplyAZIgnoresCase(t *testing.T) {
	got := Filter{Sort: SortAZ}.Apply(sample())
	assert.Equal(t, []string{"80s", "anthemic", "blues rock", "Dream Pop", "rock"}, names(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sample()
	before := names(in)
	_ = Filter{Sort: SortZA}.Apply(in)
	assert.Equal(t, before, names(in))
}

func TestParseSort(t *testing.T) {
	for input, want := range map[string]Sort{"": SortCategory, "AZ": SortAZ, " za": SortZA, "category": SortCategory} {
		got, err := ParseSort(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseSort("newest")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestNames(t *testing.T) {
	tags := append(sample(), store.Tag{Name: "rock"})
	assert.Equal(t, []string{"80s", "Dream Pop", "anthemic", "blues rock", "rock"}, Names(tags))
}
