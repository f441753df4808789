package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a session file does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that cannot name a session file.
	ErrInvalidID = errors.New("invalid session id")
)

// Info describes a stored session file.
type Info struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modified"`
	Size    int64     `json:"size"`
}

// Manager stores snapshots as <session-id>.json files in one directory.
type Manager struct {
	dir string
	now func() time.Time
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Dir returns the sessions directory.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return filepath.Join(m.dir, id+".json"), nil
}

// AutoSave writes s to the sessions directory and returns the file path.
func (m *Manager) AutoSave(s Snapshot) (string, error) {
	p, err := m.path(s.SessionID)
	if err != nil {
		return "", fmt.Errorf("AutoSave: %w", err)
	}
	if s.ExportTimestamp.IsZero() {
		s.ExportTimestamp = m.now()
	}
	data, err := Export(s)
	if err != nil {
		return "", fmt.Errorf("AutoSave: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("AutoSave: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("AutoSave: %w", err)
	}
	return p, nil
}

// AutoLoad reads the session with the given id.
func (m *Manager) AutoLoad(id string) (*Snapshot, error) {
	p, err := m.path(id)
	if err != nil {
		return nil, fmt.Errorf("AutoLoad: %w", err)
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("AutoLoad: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("AutoLoad: %w", err)
	}
	s, err := Import(raw)
	if err != nil {
		return nil, fmt.Errorf("AutoLoad: %s: %w", id, err)
	}
	return s, nil
}

// List returns the stored sessions, newest first. A missing directory is empty.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "session_") || filepath.Ext(name) != ".json" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			ID:      strings.TrimSuffix(name, ".json"),
			Path:    filepath.Join(m.dir, name),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Cleanup removes sessions last modified more than olderThan ago and returns
// the ids it removed.
func (m *Manager) Cleanup(olderThan time.Duration) ([]string, error) {
	infos, err := m.List()
	if err != nil {
		return nil, fmt.Errorf("Cleanup: %w", err)
	}
	cutoff := m.now().Add(-olderThan)
	var removed []string
	for _, info := range infos {
		if !info.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(info.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("Cleanup: %w", err)
		}
		removed = append(removed, info.ID)
	}
	return removed, nil
}
