package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// loadRecords reads the on-disk record store. A missing file is an empty
// store; a corrupt file is surfaced so the caller can decide, never silently
// emptied.
func loadRecords(path string) (map[string]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Record{}, nil
		}
		return nil, fmt.Errorf("read recovery records: %w", err)
	}
	records := map[string]*Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse recovery records: %w", err)
	}
	return records, nil
}

// saveRecords writes the store atomically: marshal to a temp file in the same
// directory, fsync, then rename over the old file. If the process dies
// mid-write the previous store survives intact.
func saveRecords(path string, records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recovery records: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".records-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp record file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		// Windows-like targets may refuse rename-over-existing. Remove then
		// rename as a fallback, accepting the narrow non-atomic window.
		if rmErr := os.Remove(path); rmErr == nil || os.IsNotExist(rmErr) {
			if err2 := os.Rename(tmpName, path); err2 == nil {
				return nil
			}
		}
		return fmt.Errorf("replace record file: %w", err)
	}
	return nil
}
