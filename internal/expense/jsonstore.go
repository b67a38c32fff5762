package expense

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONFileStore implements Store by marshaling the whole collection to
// a single JSON file. Writes go through a temp file plus rename so
// readers see either the previous or the new complete state.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a store backed by the file at path. The
// parent directory must exist; the file itself need not.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// LoadAll reads the full collection from the file.
func (s *JSONFileStore) LoadAll() ([]Record, error) {
	records := make([]Record, 0)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("Discarding unparseable records file", "path", s.path, "error", err)
		return records[:0], nil
	}
	return records, nil
}

// SaveAll overwrites the file with the given collection.
func (s *JSONFileStore) SaveAll(records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapspend-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing records file: %w", err)
	}
	return nil
}

// Close is a no-op for the file-backed store.
func (s *JSONFileStore) Close() error {
	return nil
}
