// Package merge applies partial (section-diff) updates to an
// already-materialized file, producing a new file record and leaving the
// source untouched. Update history is additive: the caller can compute,
// preview and discard a merge without losing the original.
//
// The merge strategies are deliberately best-effort textual transforms,
// selected by the target filename's extension. They are not parsers; each
// strategy documents its precondition and its append fallback.
package merge

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/youruser/weft/internal/stream"
)

// ErrFileNotFound reports that no resolved source file was supplied. Lookup
// across the conversation is the caller's responsibility; this package only
// merges.
var ErrFileNotFound = errors.New("merge: no file resolved for update")

// Merger implements stream.Merger with extension-dispatched strategies.
type Merger struct{}

// New returns a Merger.
func New() *Merger {
	return &Merger{}
}

// Apply merges the update into a copy of existing and returns the result as
// a new file with a fresh id and OriginalFileID pointing at the source. It
// is pure with respect to its inputs: the same file and update always
// produce the same content, and existing is never mutated.
func (m *Merger) Apply(existing *stream.File, u *stream.UpdateDescriptor) (*stream.File, error) {
	if existing == nil {
		return nil, ErrFileNotFound
	}

	content := existing.Content
	var sections []stream.Section

	// Removal only has meaning in the sectioned representation; plain text
	// has no named regions to delete.
	if len(existing.Sections) > 0 {
		sections = removeSections(existing.Sections, u.Removed)
		if len(u.Removed) > 0 {
			content = stream.ReconstructFromSections(sections)
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
	content = strategyForExtension(ext)(content, u)

	return &stream.File{
		ID:             stream.NewFileID(),
		Filename:       existing.Filename,
		Language:       existing.Language,
		Extension:      existing.Extension,
		Type:           existing.Type,
		MimeType:       existing.MimeType,
		Content:        content,
		Sections:       sections,
		State:          stream.FileFinalized,
		IsUpdate:       true,
		OriginalFileID: existing.ID,
	}, nil
}

type strategy func(content string, u *stream.UpdateDescriptor) string

func strategyForExtension(ext string) strategy {
	switch ext {
	case "css":
		return mergeCSS
	case "js":
		return mergeJS
	case "html", "htm":
		return mergeHTML
	default:
		return mergeGeneric
	}
}

// mergeCSS: a modified section named like base_styles tries a targeted
// replace of the first body{...} and header{...} blocks in the current
// content with the matching blocks from the section. If neither selector can
// be replaced, the section is appended whole. Everything else is appended,
// added sections under a comment header.
func mergeCSS(content string, u *stream.UpdateDescriptor) string {
	for _, sec := range u.Modified {
		if strings.Contains(sec.Name, "base_styles") {
			replaced := false
			for _, selector := range []string{"body", "header"} {
				newBlock, ok := findCSSBlock(sec.Content, selector)
				if !ok {
					continue
				}
				if updated, ok := replaceCSSBlock(content, selector, newBlock); ok {
					content = updated
					replaced = true
				}
			}
			if !replaced {
				content = appendBlock(content, sec.Content)
			}
			continue
		}
		content = appendBlock(content, sec.Content)
	}
	for _, sec := range u.Added {
		content = appendBlock(content, "/* Added: "+sec.Name+" */\n"+sec.Content)
	}
	return content
}

// mergeJS: a modified section named like counter replaces the entire file
// content (full-file override). Every other section is appended under a
// // <name> marker.
func mergeJS(content string, u *stream.UpdateDescriptor) string {
	for _, sec := range u.Modified {
		if strings.Contains(sec.Name, "counter") {
			content = sec.Content
			continue
		}
		content = appendBlock(content, "// "+sec.Name+"\n"+sec.Content)
	}
	for _, sec := range u.Added {
		content = appendBlock(content, "// "+sec.Name+"\n"+sec.Content)
	}
	return content
}

// mergeHTML: a modified section named like body replaces the first
// <body>...</body> element (case-insensitive); other modified sections are
// appended. Added sections are inserted just before the closing </body> when
// one exists, else appended.
func mergeHTML(content string, u *stream.UpdateDescriptor) string {
	for _, sec := range u.Modified {
		if strings.Contains(sec.Name, "body") {
			if updated, ok := replaceHTMLBody(content, sec.Content); ok {
				content = updated
				continue
			}
		}
		content = appendBlock(content, sec.Content)
	}
	for _, sec := range u.Added {
		if updated, ok := insertBeforeBodyClose(content, sec.Content); ok {
			content = updated
			continue
		}
		content = appendBlock(content, sec.Content)
	}
	return content
}

// mergeGeneric makes no positional merge attempt: every section is appended
// under a Modified:/Added: marker.
func mergeGeneric(content string, u *stream.UpdateDescriptor) string {
	for _, sec := range u.Modified {
		content = appendBlock(content, "// Modified: "+sec.Name+"\n"+sec.Content)
	}
	for _, sec := range u.Added {
		content = appendBlock(content, "// Added: "+sec.Name+"\n"+sec.Content)
	}
	return content
}

func removeSections(sections []stream.Section, removed []string) []stream.Section {
	if len(removed) == 0 {
		out := make([]stream.Section, len(sections))
		copy(out, sections)
		return out
	}
	drop := make(map[string]bool, len(removed))
	for _, name := range removed {
		drop[name] = true
	}
	out := make([]stream.Section, 0, len(sections))
	for _, sec := range sections {
		if drop[sec.Name] {
			continue
		}
		out = append(out, sec)
	}
	return out
}

// appendBlock appends block to content, separated by exactly one blank line.
func appendBlock(content, block string) string {
	if content == "" {
		return block
	}
	return strings.TrimRight(content, "\n") + "\n\n" + block
}
