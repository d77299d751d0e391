package state

import (
	"strings"
	"time"
)

// Message is one turn of the stored conversation.
type Message struct {
	Role        string    `json:"role"` // "user" or "assistant"
	Model       string    `json:"model,omitempty"`
	Content     string    `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	OutputFiles []string  `json:"output_files,omitempty"` // filenames produced in this turn
	Tokens      int       `json:"tokens,omitempty"`       // estimated, assistant only
}

// StoredFile is a finalized file carried across turns so later partial
// updates can resolve their target. Only the newest version per filename is
// kept.
type StoredFile struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Language  string    `json:"language,omitempty"`
	Type      string    `json:"type,omitempty"`
	Content   string    `json:"content"`
	MimeType  string    `json:"mime_type,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation is the persisted unit: the message history plus the latest
// version of every file produced so far.
type Conversation struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Messages  []Message    `json:"messages,omitempty"`
	Files     []StoredFile `json:"files,omitempty"`
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
	Files     int       `json:"files"`
}

// Preview returns the first line of the first user message, for listings.
func (c *Conversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role != "user" || m.Content == "" {
			continue
		}
		line := m.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		return line
	}
	return ""
}
