package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?i)```(?:json)?")

// cleanResponse strips code fences and any prose around the outermost object.
func cleanResponse(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

// parseResponse decodes the classifier output into a tag → raw value object.
// Numbers stay json.Number so integer indexes survive intact.
func parseResponse(text string) (map[string]any, error) {
	cleaned := cleanResponse(text)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if obj == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return obj, nil
}
