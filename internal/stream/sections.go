package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// decodeSections decodes a JSON "sections" object preserving key order.
// encoding/json maps would lose it, and encounter order is load-bearing:
// sections without a start_line sort by the order they appeared.
//
// Each value is either an object {content, start_line} or a bare string
// (shorthand for content only).
func decodeSections(raw json.RawMessage) ([]Section, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("sections: expected object, got %v", tok)
	}

	var sections []Section
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("sections: non-string key %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		sec := Section{Name: name}
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			if err := json.Unmarshal(value, &sec.Content); err != nil {
				return nil, err
			}
		} else {
			var body struct {
				Content   string `json:"content"`
				StartLine int    `json:"start_line"`
			}
			if err := json.Unmarshal(value, &body); err != nil {
				return nil, err
			}
			sec.Content = body.Content
			sec.StartLine = body.StartLine
		}
		sections = append(sections, sec)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return sections, nil
}

// decodeUpdateSections decodes a sections_modified/sections_added object
// preserving key order, for the same reason as decodeSections.
func decodeUpdateSections(raw json.RawMessage) ([]UpdateSection, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("update sections: expected object, got %v", tok)
	}

	var sections []UpdateSection
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("update sections: non-string key %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		sec := UpdateSection{Name: name}
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			if err := json.Unmarshal(value, &sec.Content); err != nil {
				return nil, err
			}
		} else {
			var body struct {
				Content       string `json:"content"`
				Type          string `json:"type"`
				ChangeSummary string `json:"change_summary"`
			}
			if err := json.Unmarshal(value, &body); err != nil {
				return nil, err
			}
			sec.Content = body.Content
			sec.Type = body.Type
			sec.ChangeSummary = body.ChangeSummary
		}
		sections = append(sections, sec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return sections, nil
}

// ReconstructFromSections builds full file content from an ordered section
// list. Sections are stable-sorted by StartLine ascending (missing start
// lines count as 0 and keep encounter order among themselves), literal \n
// escape sequences become real line breaks, and consecutive sections are
// joined by exactly one line break.
//
// The result is deterministic: the same input always yields byte-identical
// output.
func ReconstructFromSections(sections []Section) string {
	if len(sections) == 0 {
		return ""
	}

	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].StartLine < ordered[b].StartLine
	})

	var b strings.Builder
	for i, sec := range ordered {
		content := strings.ReplaceAll(sec.Content, `\n`, "\n")
		if i > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}
	return b.String()
}
