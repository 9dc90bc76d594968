// Package taxonomy holds the fixed, ordered set of categories every tag is
// classified into, and the Normalizer that coerces raw classifier output onto it.
package taxonomy

import (
	"fmt"
	"strings"
)

// Fallback is the universal default category.
const Fallback = "Miscellaneous / Meta"

// Entry is a single category label with the description shown to the classifier.
type Entry struct {
	Label       string
	Description string
}

// Taxonomy is an ordered, immutable list of entries. Positions are 1-based.
type Taxonomy struct {
	entries []Entry
	index   map[string]int // lowercase label → 1-based position
}

var defaultEntries = []Entry{
	{"Tempo & Meter", "speed, BPM and time signature (e.g. \"120 bpm\", \"3/4 waltz\", \"slow\")"},
	{"Era / Time-Period Vibe", "decades and period styles (e.g. \"80s\", \"retro\", \"y2k\")"},
	{"Core Genre Family", "broad genres (e.g. \"rock\", \"heavy metal\", \"jazz\", \"hip hop\")"},
	{"Sub-Genre & Fusion Styles", "narrow or hybrid styles (e.g. \"synthwave\", \"jazz fusion\", \"drill\")"},
	{"Instrumentation & Sound Sources", "instruments and sound sources (e.g. \"piano\", \"808\", \"strings\")"},
	{"Vocal Characteristics", "voice type and delivery (e.g. \"female vocals\", \"raspy\", \"choir\")"},
	{"Mood / Emotion", "feelings and atmosphere (e.g. \"melancholic\", \"uplifting\", \"anthem\")"},
	{"Production & Mix Aesthetics", "sound design and mixing (e.g. \"lo-fi\", \"reverb heavy\", \"polished\")"},
	{"Rhythmic & Structural Traits", "groove and song structure (e.g. \"slow build up\", \"syncopated\", \"drop\")"},
	{"Cultural / Regional Flavor", "places and cultures (e.g. \"latin\", \"k-pop\", \"celtic\")"},
	{"Language & Lyrical Context", "lyric language and writing (e.g. \"spanish lyrics\", \"storytelling\", \"instrumental\")"},
	{"Themes & Imagery", "subjects and imagery (e.g. \"space\", \"heartbreak\", \"summer night\")"},
	{Fallback, "anything that fits no other category"},
}

var defaultTaxonomy = mustNew(defaultEntries)

// Default returns the built-in music-descriptor taxonomy.
func Default() *Taxonomy {
	return defaultTaxonomy
}

// New builds a taxonomy from entries. Labels must be unique (case-insensitive)
// and the fallback label must be present.
func New(entries []Entry) (*Taxonomy, error) {
	t := &Taxonomy{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(t.entries, entries)
	for i, e := range t.entries {
		key := strings.ToLower(strings.TrimSpace(e.Label))
		if key == "" {
			return nil, fmt.Errorf("taxonomy: empty label at position %d", i+1)
		}
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("taxonomy: duplicate label %q", e.Label)
		}
		t.index[key] = i + 1
	}
	if _, ok := t.index[strings.ToLower(Fallback)]; !ok {
		return nil, fmt.Errorf("taxonomy: fallback label %q missing", Fallback)
	}
	return t, nil
}

func mustNew(entries []Entry) *Taxonomy {
	t, err := New(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of categories.
func (t *Taxonomy) Len() int { return len(t.entries) }

// At returns the label at the 1-based position.
func (t *Taxonomy) At(pos int) (string, bool) {
	if pos < 1 || pos > len(t.entries) {
		return "", false
	}
	return t.entries[pos-1].Label, true
}

// Lookup resolves a label case-insensitively, ignoring surrounding space,
// and returns its canonical spelling.
func (t *Taxonomy) Lookup(label string) (string, bool) {
	pos, ok := t.index[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", false
	}
	return t.entries[pos-1].Label, true
}

// Contains reports whether label is a canonical taxonomy label.
func (t *Taxonomy) Contains(label string) bool {
	canonical, ok := t.Lookup(label)
	return ok && canonical == label
}

// Position returns the 1-based ordinal of a canonical label, or 0.
func (t *Taxonomy) Position(label string) int {
	if !t.Contains(label) {
		return 0
	}
	return t.index[strings.ToLower(label)]
}

// Labels returns all labels in ordinal order.
func (t *Taxonomy) Labels() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Label
	}
	return out
}

// Entries returns a copy of the entries in ordinal order.
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// NumberedList renders "1. Label" lines for index-encoded prompts.
func (t *Taxonomy) NumberedList() string {
	var b strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, e.Label)
	}
	return b.String()
}

// DescribedList renders "- Label: description" lines for label-encoded prompts.
func (t *Taxonomy) DescribedList() string {
	var b strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if e.Description == "" {
			fmt.Fprintf(&b, "- %s", e.Label)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", e.Label, e.Description)
	}
	return b.String()
}
