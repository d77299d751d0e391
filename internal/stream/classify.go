package stream

import (
	"encoding/json"
	"strings"
)

// Kind is the result of sniffing a payload string.
type Kind int

const (
	KindPlainText Kind = iota
	KindFileDescriptor
	KindPartialUpdate
)

func (k Kind) String() string {
	switch k {
	case KindPlainText:
		return "plain_text"
	case KindFileDescriptor:
		return "file_descriptor"
	case KindPartialUpdate:
		return "partial_update"
	default:
		return "unknown"
	}
}

// FileDescriptor is a full-file payload transmitted inline: either whole
// content or a sectioned representation.
type FileDescriptor struct {
	ID           string
	Filename     string
	Language     string
	Type         string
	Content      string
	HasContent   bool
	Sections     []Section
	IsExecutable bool
	MimeType     string
}

// UpdateSection is one named fragment of a partial update.
type UpdateSection struct {
	Name          string
	Content       string
	Type          string
	ChangeSummary string
}

// UpdateDescriptor is a partial-update payload: named sections to modify, add
// or remove on an already-known file. Consumed once by the merger.
type UpdateDescriptor struct {
	Filename string
	Modified []UpdateSection
	Added    []UpdateSection
	Removed  []string
}

// Classification is the tagged result of Classify. Exactly one of File and
// Update is set for the non-plain kinds.
type Classification struct {
	Kind   Kind
	File   *FileDescriptor
	Update *UpdateDescriptor
}

type descriptorProbe struct {
	ID               string          `json:"id"`
	Filename         string          `json:"filename"`
	UpdateType       string          `json:"update_type"`
	Language         string          `json:"language"`
	Type             string          `json:"type"`
	Content          *string         `json:"content"`
	Sections         json.RawMessage `json:"sections"`
	SectionsModified json.RawMessage `json:"sections_modified"`
	SectionsAdded    json.RawMessage `json:"sections_added"`
	SectionsRemoved  []string        `json:"sections_removed"`
	IsExecutable     bool            `json:"is_executable"`
	MimeType         string          `json:"mime_type"`
}

// Classify decides whether a payload string is plain text, an inline file
// descriptor, or a partial-update descriptor. It is the single sniffing
// routine shared by the file_chunk path and the embedded-text scan.
//
// Anything that fails to parse as a JSON object with a filename is plain
// text; mid-stream JSON is incomplete by nature and that is not an error.
func Classify(payload string) Classification {
	plain := Classification{Kind: KindPlainText}

	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, `"filename"`) {
		return plain
	}

	var probe descriptorProbe
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return plain
	}
	if probe.Filename == "" {
		return plain
	}

	if probe.UpdateType == "partial" {
		modified, err := decodeUpdateSections(probe.SectionsModified)
		if err != nil {
			return plain
		}
		added, err := decodeUpdateSections(probe.SectionsAdded)
		if err != nil {
			return plain
		}
		return Classification{
			Kind: KindPartialUpdate,
			Update: &UpdateDescriptor{
				Filename: probe.Filename,
				Modified: modified,
				Added:    added,
				Removed:  probe.SectionsRemoved,
			},
		}
	}

	sections, err := decodeSections(probe.Sections)
	if err != nil {
		return plain
	}

	desc := &FileDescriptor{
		ID:           probe.ID,
		Filename:     probe.Filename,
		Language:     probe.Language,
		Type:         probe.Type,
		Sections:     sections,
		IsExecutable: probe.IsExecutable,
		MimeType:     probe.MimeType,
	}
	if probe.Content != nil {
		desc.Content = *probe.Content
		desc.HasContent = true
	}
	return Classification{Kind: KindFileDescriptor, File: desc}
}
