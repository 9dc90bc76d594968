package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Encoding selects how the classifier is asked to name categories.
type Encoding string

const (
	// EncodingIndex asks for the 1-based category number.
	EncodingIndex Encoding = "index"
	// EncodingLabel asks for the exact category label.
	EncodingLabel Encoding = "label"
)

// ParseEncoding accepts "index" or "label"; empty means index.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingIndex:
		return EncodingIndex, nil
	case EncodingLabel:
		return EncodingLabel, nil
	}
	return "", fmt.Errorf("classify: unknown encoding %q (want index or label)", s)
}

var exampleTags = []string{"heavy metal", "slow build up", "80s"}

// BuildPrompt renders the instruction for one batch of tags.
func BuildPrompt(tax *taxonomy.Taxonomy, enc Encoding, tags []string) string {
	batch, err := json.Marshal(tags)
	if err != nil {
		// []string always marshals
		batch = []byte("[]")
	}
	if enc == EncodingLabel {
		return labelPrompt(tax, string(batch))
	}
	return indexPrompt(tax, string(batch))
}

func indexPrompt(tax *taxonomy.Taxonomy, batch string) string {
	var b strings.Builder
	b.WriteString("You are an expert musicologist. Categorize each music tag in the list below.\n")
	b.WriteString("Respond with one JSON object whose keys are the tags exactly as given and whose values are the NUMBER of the matching category.\n\n")
	b.WriteString("CATEGORIES:\n")
	b.WriteString(tax.NumberedList())
	b.WriteString("\n\nRULES:\n")
	fmt.Fprintf(&b, "- Every value MUST be an integer between 1 and %d.\n", tax.Len())
	b.WriteString("- Use the number only, never the category name.\n")
	b.WriteString("- Return only the JSON object: no commentary and no markdown fences.\n\n")
	fmt.Fprintf(&b, "Example input: %s\n", mustJSON(exampleTags))
	b.WriteString("Example output:\n")
	fmt.Fprintf(&b, "{%q: %d, %q: %d, %q: %d}\n\n",
		exampleTags[0], tax.Position("Core Genre Family"),
		exampleTags[1], tax.Position("Rhythmic & Structural Traits"),
		exampleTags[2], tax.Position("Era / Time-Period Vibe"))
	b.WriteString("Now categorize these tags:\n")
	b.WriteString(batch)
	b.WriteByte('\n')
	return b.String()
}

func labelPrompt(tax *taxonomy.Taxonomy, batch string) string {
	var b strings.Builder
	b.WriteString("You are an expert musicologist. Categorize each music tag in the list below.\n")
	b.WriteString("Respond with one JSON object whose keys are the tags exactly as given and whose values are the category LABEL copied verbatim from this list.\n\n")
	b.WriteString("CATEGORIES:\n")
	b.WriteString(tax.DescribedList())
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Every value MUST be one of the labels above, spelled exactly.\n")
	fmt.Fprintf(&b, "- When unsure, use %q.\n", taxonomy.Fallback)
	b.WriteString("- Return only the JSON object: no commentary and no markdown fences.\n\n")
	b.WriteString("Now categorize these tags:\n")
	b.WriteString(batch)
	b.WriteByte('\n')
	return b.String()
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
