package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedJSON = errors.New("model reply is not valid JSON")

// DecodeJSON unmarshals a model reply into v. Providers without strict schema
// support wrap JSON in markdown fences or prose, so the first complete JSON
// value is located first.
func DecodeJSON(raw string, v any) error {
	body := ExtractJSON(raw)
	if body == "" {
		return fmt.Errorf("%w: no JSON value found", ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// ExtractJSON returns the first complete JSON object or array in s, or "" if
// none. Text after the value is ignored and openers that do not start a valid
// value are skipped.
func ExtractJSON(s string) string {
	return FindJSON(s, func(json.RawMessage) bool { return true })
}

// FindJSON scans s for top-level JSON objects or arrays in order and returns
// the first one accept reports true for. A leading markdown fence is removed.
func FindJSON(s string, accept func(json.RawMessage) bool) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	for off := 0; off < len(s); {
		i := strings.IndexAny(s[off:], "[{")
		if i < 0 {
			return ""
		}
		start := off + i
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			off = start + 1
			continue
		}
		if accept(raw) {
			return string(raw)
		}
		// values nested in a rejected one are not candidates
		off = start + int(dec.InputOffset())
	}
	return ""
}
