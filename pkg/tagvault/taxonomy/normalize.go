package taxonomy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rule maps any text containing Contains (case-insensitive) to Category.
type Rule struct {
	Contains string `yaml:"contains"`
	Category string `yaml:"category"`
}

// DefaultRules are the fuzzy rules applied when no configuration overrides them.
var DefaultRules = []Rule{
	{Contains: "lyrical", Category: "Language & Lyrical Context"},
}

// Normalizer coerces raw classifier values onto the taxonomy. It accepts both
// encodings a classifier may drift between: 1-based indexes and label strings.
type Normalizer struct {
	tax   *Taxonomy
	rules []Rule // needles lowercased, categories canonical
}

// NewNormalizer validates rules against tax. Rules are evaluated in the
// order given and the first match wins.
func NewNormalizer(tax *Taxonomy, rules ...Rule) (*Normalizer, error) {
	if tax == nil {
		tax = Default()
	}
	n := &Normalizer{tax: tax, rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		needle := strings.ToLower(strings.TrimSpace(r.Contains))
		if needle == "" {
			return nil, fmt.Errorf("taxonomy rule: empty contains for category %q", r.Category)
		}
		label, ok := tax.Lookup(r.Category)
		if !ok {
			return nil, fmt.Errorf("taxonomy rule %q: unknown category %q", r.Contains, r.Category)
		}
		n.rules = append(n.rules, Rule{Contains: needle, Category: label})
	}
	return n, nil
}

// DefaultNormalizer uses the default taxonomy and DefaultRules.
func DefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(Default(), DefaultRules...)
	if err != nil {
		panic(err)
	}
	return n
}

// Taxonomy returns the taxonomy the normalizer maps onto.
func (n *Normalizer) Taxonomy() *Taxonomy { return n.tax }

// Normalize never fails: anything it cannot place becomes Fallback.
func (n *Normalizer) Normalize(raw any) string {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return n.byIndex(i)
		}
		if f, err := v.Float64(); err == nil {
			return n.byFloat(f)
		}
	case int:
		return n.byIndex(int64(v))
	case int8:
		return n.byIndex(int64(v))
	case int16:
		return n.byIndex(int64(v))
	case int32:
		return n.byIndex(int64(v))
	case int64:
		return n.byIndex(v)
	case uint:
		return n.byUint(uint64(v))
	case uint8:
		return n.byUint(uint64(v))
	case uint16:
		return n.byUint(uint64(v))
	case uint32:
		return n.byUint(uint64(v))
	case uint64:
		return n.byUint(v)
	case float32:
		return n.byFloat(float64(v))
	case float64:
		return n.byFloat(v)
	case string:
		return n.byText(v)
	}
	return Fallback
}

func (n *Normalizer) byIndex(i int64) string {
	if i < 1 || i > int64(n.tax.Len()) {
		return Fallback
	}
	label, _ := n.tax.At(int(i))
	return label
}

func (n *Normalizer) byUint(u uint64) string {
	if u > uint64(n.tax.Len()) {
		return Fallback
	}
	return n.byIndex(int64(u))
}

func (n *Normalizer) byFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return Fallback
	}
	if f < 1 || f > float64(n.tax.Len()) {
		return Fallback
	}
	return n.byIndex(int64(f))
}

func (n *Normalizer) byText(s string) string {
	trimmed := strings.TrimSpace(s)
	if label, ok := n.tax.Lookup(trimmed); ok {
		return label
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n.byIndex(i)
	}
	lower := strings.ToLower(s)
	for _, r := range n.rules {
		if strings.Contains(lower, r.Contains) {
			return r.Category
		}
	}
	return Fallback
}
