// Package settings persists user playback preferences between runs.
package settings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Settings are the user preferences restored at startup.
type Settings struct {
	Volume    float64 `json:"volume"`
	StationID string  `json:"station_id"`
	Category  string  `json:"category"`
	Autoplay  bool    `json:"autoplay"`
}

// Default returns the settings used when no file exists yet.
func Default() Settings {
	return Settings{
		Volume:   0.5,
		Category: "classical",
	}
}

// Store reads and writes a JSON settings file. Writes go through a temp
// file and rename so a crash never leaves a torn file behind.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path used by this store.
func (s *Store) Path() string { return s.path }

// Load reads settings from disk. A missing or corrupt file yields defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}

	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("settings: corrupt file, using defaults", "path", s.path, "err", err)
		return Default(), nil
	}
	return out, nil
}

// Save writes settings to disk atomically.
func (s *Store) Save(in Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
