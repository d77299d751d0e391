package merge

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// Block matching uses regexp2, whose lazy quantifiers map directly onto the
// "first block wins" merge semantics. Patterns assume flat blocks (no nested
// braces), which holds for the CSS these merges see.
//
// regexp2 match positions are rune offsets, so splicing goes through []rune.

var (
	cssBlockRes  = map[string]*regexp2.Regexp{}
	htmlBodyRe   = regexp2.MustCompile(`<body\b[\s\S]*?</body>`, regexp2.IgnoreCase)
	bodyCloseRe  = regexp2.MustCompile(`</body>`, regexp2.IgnoreCase)
	cssSelectors = []string{"body", "header"}
)

func init() {
	for _, sel := range cssSelectors {
		pattern := fmt.Sprintf(`(?:^|[\s}])(%s\s*\{[^}]*\})`, sel)
		cssBlockRes[sel] = regexp2.MustCompile(pattern, regexp2.Multiline)
	}
}

// findCSSBlock returns the first "<selector> { ... }" block in content.
func findCSSBlock(content, selector string) (string, bool) {
	re, ok := cssBlockRes[selector]
	if !ok {
		return "", false
	}
	m, err := re.FindStringMatch(content)
	if err != nil || m == nil {
		return "", false
	}
	return m.GroupByNumber(1).String(), true
}

// replaceCSSBlock replaces the first "<selector> { ... }" block in content
// with newBlock. Returns content unchanged (and false) when no block of that
// selector exists.
func replaceCSSBlock(content, selector, newBlock string) (string, bool) {
	re, ok := cssBlockRes[selector]
	if !ok {
		return content, false
	}
	m, err := re.FindStringMatch(content)
	if err != nil || m == nil {
		return content, false
	}
	g := m.GroupByNumber(1)
	runes := []rune(content)
	return string(runes[:g.Index]) + newBlock + string(runes[g.Index+g.Length:]), true
}

// replaceHTMLBody replaces the first <body>...</body> element,
// case-insensitive, with replacement.
func replaceHTMLBody(content, replacement string) (string, bool) {
	m, err := htmlBodyRe.FindStringMatch(content)
	if err != nil || m == nil {
		return content, false
	}
	runes := []rune(content)
	return string(runes[:m.Index]) + replacement + string(runes[m.Index+m.Length:]), true
}

// insertBeforeBodyClose inserts block immediately before the first </body>
// close tag.
func insertBeforeBodyClose(content, block string) (string, bool) {
	m, err := bodyCloseRe.FindStringMatch(content)
	if err != nil || m == nil {
		return content, false
	}
	runes := []rune(content)
	return string(runes[:m.Index]) + block + "\n" + string(runes[m.Index:]), true
}
