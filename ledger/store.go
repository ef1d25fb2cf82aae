package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists snapshots as JSON. Save is atomic: the document is written
// to a temp file in the same directory and renamed over the target, so a
// crash mid-write never leaves a truncated state file.
type Store struct {
	path string
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the snapshot atomically.
func (s *Store) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads and migrates the state file. found is false when no state file
// exists yet.
func (s *Store) Load() (snap Snapshot, found bool, err error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	snap, err = Migrate(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}
