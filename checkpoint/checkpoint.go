// Package checkpoint persists batch progress so an interrupted run can
// resume where it left off. The store is injected into the runner, so
// multiple runner instances (tests included) never share state through
// a process-wide file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint marks the last successfully processed product.
type Checkpoint struct {
	LastProcessedID int64  `json:"last_processed_id"`
	Timestamp       string `json:"timestamp"`
	ProcessID       int    `json:"process_id"`
}

// Store persists a single checkpoint record.
type Store interface {
	// Load returns the persisted checkpoint, or (nil, nil) when none
	// exists.
	Load() (*Checkpoint, error)

	// Save overwrites the checkpoint atomically.
	Save(cp Checkpoint) error

	// Clear removes the checkpoint. Not an error if absent.
	Clear() error
}

// FileStore keeps the checkpoint in a JSON file, overwritten atomically
// via a temp file and rename.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (f *FileStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	return &cp, nil
}

// Save implements Store.
func (f *FileStore) Save(cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// Clear implements Store.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
