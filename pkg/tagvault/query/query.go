// Package query filters and orders stored tags for the viewer surfaces.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
)

// Sort is a tag ordering.
type Sort string

const (
	SortCategory Sort = "category" // category, then name
	SortAZ       Sort = "az"       // name ascending, case-insensitive
	SortZA       Sort = "za"       // name descending, case-insensitive
)

// ParseSort accepts category, az or za. Empty means category.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortCategory:
		return SortCategory, nil
	case SortAZ:
		return SortAZ, nil
	case SortZA:
		return SortZA, nil
	}
	return "", fmt.Errorf("%w: unknown sort %q (want category, az or za)", internalerr.ErrInvalidInput, s)
}

// Filter selects tags whose name contains Search (case-insensitive) and whose
// category is one of Categories. Empty fields match everything.
type Filter struct {
	Search     string
	Categories []string
	Sort       Sort
}

// Apply returns the matching tags in the requested order. tags is not modified.
func (f Filter) Apply(tags []store.Tag) []store.Tag {
	needle := strings.ToLower(strings.TrimSpace(f.Search))

	var allowed map[string]struct{}
	if len(f.Categories) > 0 {
		allowed = make(map[string]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			allowed[c] = struct{}{}
		}
	}

	out := make([]store.Tag, 0, len(tags))
	for _, tag := range tags {
		if needle != "" && !strings.Contains(strings.ToLower(tag.Name), needle) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[tag.Category]; !ok {
				continue
			}
		}
		out = append(out, tag)
	}

	switch f.Sort {
	case SortAZ:
		sort.SliceStable(out, func(i, j int) bool { return nameLess(out[i].Name, out[j].Name) })
	case SortZA:
		sort.SliceStable(out, func(i, j int) bool { return nameLess(out[j].Name, out[i].Name) })
	default:
		store.SortTags(out)
	}
	return out
}

func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Names returns the sorted, de-duplicated tag names.
func Names(tags []store.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	names = store.UniqueStrings(names)
	sort.Strings(names)
	return names
}
