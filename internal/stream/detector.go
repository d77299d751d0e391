package stream

import (
	"regexp"
	"sort"
	"strings"
)

// Embedded descriptors arrive inside the free-text channel either fenced in a
// ```json block or as raw JSON. The fenced form is authoritative: if any
// fenced block parses, the raw-pattern fallback is skipped for that scan.
var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

var blankRunRe = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)

// DetectedFile pairs an inline file descriptor with the exact substring it
// was parsed from, so the caller can dedupe across repeated scans.
type DetectedFile struct {
	Desc *FileDescriptor
	Raw  string
}

// DetectedUpdate pairs a partial-update descriptor with its matched substring.
type DetectedUpdate struct {
	Update *UpdateDescriptor
	Raw    string
}

// ScanResult is the outcome of one detector pass over the accumulated text.
type ScanResult struct {
	Files    []DetectedFile
	Updates  []DetectedUpdate
	Stripped string
}

type span struct {
	start, end int
}

// Scan extracts every embedded file/update descriptor from text and returns
// the text with all matched substrings stripped, so raw JSON never renders as
// prose. Candidates that fail to parse are ignored without error: mid-stream
// they are usually just incomplete.
//
// Scan runs on every chunk, not only at stream end, so a descriptor is
// detected as soon as its JSON closes.
func Scan(text string) ScanResult {
	var result ScanResult
	var strip []span
	seen := make(map[string]bool) // (filename, id) pairs already registered

	record := func(c Classification, s span) {
		raw := text[s.start:s.end]
		switch c.Kind {
		case KindPartialUpdate:
			result.Updates = append(result.Updates, DetectedUpdate{Update: c.Update, Raw: raw})
			strip = append(strip, s)
		case KindFileDescriptor:
			key := c.File.Filename + "\x00" + c.File.ID
			if seen[key] {
				strip = append(strip, s)
				return
			}
			seen[key] = true
			result.Files = append(result.Files, DetectedFile{Desc: c.File, Raw: raw})
			strip = append(strip, s)
		}
	}

	// Pass 1: fenced ```json blocks.
	fencedHit := false
	for _, m := range fencedJSONRe.FindAllStringSubmatchIndex(text, -1) {
		candidate := text[m[2]:m[3]]
		c := Classify(candidate)
		if c.Kind == KindPlainText {
			continue
		}
		fencedHit = true
		record(c, span{m[0], m[1]})
	}

	// Pass 2: raw bracket-balanced objects, tried pattern by pattern in
	// priority order, stopping at the first pattern that parses anywhere.
	if !fencedHit {
		candidates := balancedObjects(text)
		patterns := []func(string) bool{
			func(s string) bool {
				return strings.Contains(s, `"filename"`) &&
					strings.Contains(s, `"update_type"`) && strings.Contains(s, `"partial"`)
			},
			func(s string) bool {
				return strings.Contains(s, `"filename"`) && strings.Contains(s, `"sections"`)
			},
			func(s string) bool {
				return strings.Contains(s, `"filename"`)
			},
		}
		for _, match := range patterns {
			hit := false
			for _, s := range candidates {
				candidate := text[s.start:s.end]
				if !match(candidate) {
					continue
				}
				c := Classify(candidate)
				if c.Kind == KindPlainText {
					continue
				}
				hit = true
				record(c, s)
			}
			if hit {
				break
			}
		}
	}

	result.Stripped = stripSpans(text, strip)
	return result
}

// balancedObjects returns the spans of all top-level brace-balanced JSON
// object candidates in text. String literals and escapes are respected. An
// object whose closing brace has not arrived yet is simply not returned.
func balancedObjects(text string) []span {
	var spans []span
	i := 0
	for i < len(text) {
		if text[i] != '{' {
			i++
			continue
		}
		end, ok := scanBalanced(text, i)
		if !ok {
			// Unterminated so far; an inner object may still be complete.
			i++
			continue
		}
		spans = append(spans, span{i, end})
		i = end
	}
	return spans
}

// scanBalanced walks forward from an opening brace and returns the index just
// past its matching close brace.
func scanBalanced(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// stripSpans removes the given spans from text, collapses the blank-line runs
// left behind and trims the result.
func stripSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.start < pos {
			continue // overlapping span already removed
		}
		b.WriteString(text[pos:s.start])
		pos = s.end
	}
	b.WriteString(text[pos:])

	out := blankRunRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}
