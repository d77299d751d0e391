package state

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// index records which conversation was active last, so a new process picks
// up where the previous one left off. The index is a cache: losing it only
// loses the active selection, never data.
type index struct {
	ActiveID string `json:"active_id,omitempty"`
}

func (s *Store) indexPath() string {
	return filepath.Join(s.conversationsDir(), "index.json")
}

func (s *Store) loadIndex() (index, error) {
	var idx index
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return index{}, err
	}
	return idx, nil
}

// saveIndex is best-effort; a failed write is not an error the caller can
// act on.
func (s *Store) saveIndex(idx index) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(s.indexPath(), data, 0644)
}
