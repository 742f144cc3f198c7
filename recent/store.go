package recent

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileStore keeps recency history in a TOML file
type FileStore struct {
	path string
}

type fileEntry struct {
	Name     string    `toml:"name"`
	LastUsed time.Time `toml:"last_used"`
}

type fileContents struct {
	Entries []fileEntry `toml:"entries"`

	// Profiles holds the older name = unix-seconds layout
	Profiles map[string]int64 `toml:"profiles,omitempty"`
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads entries. A missing file yields no entries.
func (s *FileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recent profiles: %w", err)
	}

	var contents fileContents
	if _, err := toml.Decode(string(data), &contents); err != nil {
		return nil, fmt.Errorf("failed to parse recent profiles: %w", err)
	}

	entries := make([]Entry, 0, len(contents.Entries)+len(contents.Profiles))
	for _, e := range contents.Entries {
		entries = append(entries, Entry{Name: e.Name, LastUsed: e.LastUsed})
	}
	for name, ts := range contents.Profiles {
		entries = append(entries, Entry{Name: name, LastUsed: time.Unix(ts, 0)})
	}

	return entries, nil
}

// Save replaces the file with entries
func (s *FileStore) Save(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create recent profiles directory: %w", err)
	}

	contents := fileContents{Entries: make([]fileEntry, 0, len(entries))}
	for _, e := range entries {
		contents.Entries = append(contents.Entries, fileEntry{Name: e.Name, LastUsed: e.LastUsed.UTC()})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(contents); err != nil {
		return fmt.Errorf("failed to encode recent profiles: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write recent profiles: %w", err)
	}

	return nil
}
