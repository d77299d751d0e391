package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for expected conditions.
var (
	ErrNotInitialized       = errors.New("store not initialized: call Init first")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationLocked   = errors.New("conversation is locked by another process")
	ErrFileNotFound         = errors.New("file not found in conversation")
)

// Store is the file-backed conversation store. One conversation is active at
// a time; every send appends to it and re-persists it.
type Store struct {
	root      string // base directory, default ~/.weft
	Active    *Conversation
	lockedDir string // conversation directory currently locked by this instance
}

// NewStore creates a store rooted at dir. An empty dir selects ~/.weft
// (falling back to the temp dir when no home is resolvable).
func NewStore(dir string) *Store {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			dir = filepath.Join(os.TempDir(), ".weft")
		} else {
			dir = filepath.Join(home, ".weft")
		}
	}
	return &Store{root: dir}
}

// Init creates the on-disk layout and restores the last active conversation
// when one is recorded. Restore is best-effort: a missing or unreadable
// conversation leaves the store active-less rather than failing Init.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.conversationsDir(), 0755); err != nil {
		return err
	}

	idx, err := s.loadIndex()
	if err == nil && idx.ActiveID != "" {
		s.Select(idx.ActiveID)
	}
	return nil
}

func (s *Store) initialized() bool {
	_, err := os.Stat(s.conversationsDir())
	return err == nil
}

// Path helpers

func (s *Store) conversationsDir() string {
	return filepath.Join(s.root, "conversations")
}

func (s *Store) conversationDir(id string) string {
	return filepath.Join(s.conversationsDir(), id)
}

func (s *Store) conversationJSONPath(id string) string {
	return filepath.Join(s.conversationDir(id), "conversation.json")
}

// New creates, locks and activates a fresh conversation.
func (s *Store) New(name string) (*Conversation, error) {
	if !s.initialized() {
		return nil, ErrNotInitialized
	}

	now := time.Now()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dir := s.conversationDir(conv.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := AcquireLock(dir); err != nil {
		return nil, err
	}

	if err := s.save(conv); err != nil {
		ReleaseLock(dir)
		return nil, err
	}

	s.releaseActive()
	s.Active = conv
	s.lockedDir = dir
	s.saveIndex(index{ActiveID: conv.ID})
	return conv, nil
}

// Select loads a conversation by id, locks it and makes it active.
func (s *Store) Select(id string) (*Conversation, error) {
	if !s.initialized() {
		return nil, ErrNotInitialized
	}

	conv, err := s.load(id)
	if err != nil {
		return nil, err
	}

	s.releaseActive()

	dir := s.conversationDir(id)
	if err := AcquireLock(dir); err != nil {
		return nil, err
	}

	s.Active = conv
	s.lockedDir = dir
	s.saveIndex(index{ActiveID: id})
	return conv, nil
}

// List returns all conversations, most recently updated first.
func (s *Store) List() ([]ConversationSummary, error) {
	if !s.initialized() {
		return nil, ErrNotInitialized
	}

	entries, err := os.ReadDir(s.conversationsDir())
	if err != nil {
		return nil, err
	}

	var out []ConversationSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		conv, err := s.load(entry.Name())
		if err != nil {
			continue // unreadable entries are skipped, not fatal
		}
		name := conv.Name
		if name == "" {
			name = conv.Preview()
		}
		out = append(out, ConversationSummary{
			ID:        conv.ID,
			Name:      name,
			UpdatedAt: conv.UpdatedAt,
			Messages:  len(conv.Messages),
			Files:     len(conv.Files),
		})
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].UpdatedAt.After(out[b].UpdatedAt)
	})
	return out, nil
}

// Delete removes a conversation from disk. Deleting the active conversation
// deactivates it first.
func (s *Store) Delete(id string) error {
	if !s.initialized() {
		return ErrNotInitialized
	}
	if _, err := os.Stat(s.conversationJSONPath(id)); os.IsNotExist(err) {
		return ErrConversationNotFound
	}
	if s.Active != nil && s.Active.ID == id {
		s.releaseActive()
		s.Active = nil
		s.saveIndex(index{})
	}
	return os.RemoveAll(s.conversationDir(id))
}

// AddMessage appends a message to the active conversation and persists it.
func (s *Store) AddMessage(m Message) error {
	if s.Active == nil {
		return ErrNoActiveConversation
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.Active.Messages = append(s.Active.Messages, m)
	s.Active.UpdatedAt = time.Now()
	return s.save(s.Active)
}

// UpsertFile records a finalized file on the active conversation,
// last-write-wins per filename, and persists.
func (s *Store) UpsertFile(f StoredFile) error {
	if s.Active == nil {
		return ErrNoActiveConversation
	}
	f.UpdatedAt = time.Now()
	replaced := false
	for i := range s.Active.Files {
		if s.Active.Files[i].Filename == f.Filename {
			s.Active.Files[i] = f
			replaced = true
			break
		}
	}
	if !replaced {
		s.Active.Files = append(s.Active.Files, f)
	}
	s.Active.UpdatedAt = time.Now()
	return s.save(s.Active)
}

// FileByName returns the stored file with the given filename from the active
// conversation.
func (s *Store) FileByName(filename string) (StoredFile, error) {
	if s.Active == nil {
		return StoredFile{}, ErrNoActiveConversation
	}
	for _, f := range s.Active.Files {
		if f.Filename == filename {
			return f, nil
		}
	}
	return StoredFile{}, ErrFileNotFound
}

// Close releases any lock held by this instance.
func (s *Store) Close() {
	s.releaseActive()
}

func (s *Store) releaseActive() {
	if s.lockedDir != "" {
		ReleaseLock(s.lockedDir)
		s.lockedDir = ""
	}
}

func (s *Store) load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.conversationJSONPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// save writes the conversation atomically: marshal to a temp file in the
// same directory, then rename over the target.
func (s *Store) save(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	dir := s.conversationDir(conv.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "conversation-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.conversationJSONPath(conv.ID))
}
