package activity

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// HistoryLimit caps the local history at the most recent entries.
const HistoryLimit = 50

// Record is one finished activity in the local history.
type Record struct {
	Activity
	Outcome State     `json:"outcome"`
	EndedAt time.Time `json:"endedAt"`
}

// History is a bounded, most-recent-first list of finished activities
// persisted as a JSON file.
type History struct {
	mu      sync.Mutex
	path    string
	entries []Record
}

// DefaultHistoryPath resolves the per-user data file location.
func DefaultHistoryPath() (string, error) {
	return xdg.DataFile(filepath.Join("stillhere", "activity_history.json"))
}

// LoadHistory reads the history file at path. A missing file yields an
// empty history; a corrupt one is discarded rather than blocking the
// session.
func LoadHistory(path string) (*History, error) {
	h := &History{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return h, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		h.entries = nil
	}
	if len(h.entries) > HistoryLimit {
		h.entries = h.entries[:HistoryLimit]
	}
	return h, nil
}

// Append prepends a record, trims to the limit, and persists.
func (h *History) Append(r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]Record{r}, h.entries...)
	if len(h.entries) > HistoryLimit {
		h.entries = h.entries[:HistoryLimit]
	}
	return h.save()
}

// Entries returns a copy of the history, most recent first.
func (h *History) Entries() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.entries))
	copy(out, h.entries)
	return out
}

// save writes the file atomically. Caller holds the lock.
func (h *History) save() error {
	if h.path == "" {
		return nil // in-memory only
	}
	data, err := json.MarshalIndent(h.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := h.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, h.path)
}
