// Package capture reads tag names out of captured recommend-tags responses.
package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
)

type namedTag struct {
	Name string `json:"name"`
}

// Extract returns the tag names in payload, in order. Entries may be plain
// strings or objects with a non-empty "name"; anything else is skipped.
func Extract(payload []byte) ([]string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil || probe == nil {
		return nil, fmt.Errorf("%w: capture payload is not a JSON object", internalerr.ErrInvalidInput)
	}
	raw, ok := probe["recommended_tags"]
	if !ok {
		return nil, fmt.Errorf("%w: capture payload has no recommended_tags", internalerr.ErrInvalidInput)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, fmt.Errorf("%w: recommended_tags is not an array", internalerr.ErrInvalidInput)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := entryName(entry); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func entryName(entry json.RawMessage) (string, bool) {
	entry = bytes.TrimSpace(entry)
	if len(entry) == 0 {
		return "", false
	}
	switch entry[0] {
	case '"':
		var s string
		if err := json.Unmarshal(entry, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case '{':
		var tag namedTag
		if err := json.Unmarshal(entry, &tag); err != nil || tag.Name == "" {
			return "", false
		}
		return tag.Name, true
	}
	return "", false
}

// LoadFromJSONL reads one captured payload per line and returns every tag
// name in file order. Malformed lines are skipped with a warning.
func LoadFromJSONL(path string, log *logger.Logger) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f, path, log)
}

// LoadFromReader is LoadFromJSONL over any reader. source names the input in
// warnings and errors.
func LoadFromReader(r io.Reader, source string, log *logger.Logger) ([]string, error) {
	if log == nil {
		log = logger.Nop()
	}

	var names []string
	payloads := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		tags, err := Extract(text)
		if err != nil {
			log.Warn("skipping malformed capture line", "source", source, "line", line, "error", err)
			continue
		}
		payloads++
		names = append(names, tags...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", source, err)
	}

	if payloads == 0 {
		return nil, fmt.Errorf("%w: no valid payloads found in %s", internalerr.ErrInvalidInput, source)
	}
	return names, nil
}
