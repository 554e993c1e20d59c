package persister

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/pkg/errors"
)

// WriteSnapshot writes records as an indented JSON array. The file is written
// to a temporary sibling and renamed, so readers never see a partial snapshot.
func WriteSnapshot(path string, records []models.ProductRecord) error {
	if records == nil {
		records = []models.ProductRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.NewPersistence(path, "failed to encode snapshot", err)
	}

	if err := ensureDir(path); err != nil {
		return errors.NewPersistence(path, "failed to prepare snapshot directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewPersistence(path, "failed to create snapshot", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewPersistence(path, "failed to write snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistence(path, "failed to write snapshot", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistence(path, "failed to write snapshot", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistence(path, "failed to replace snapshot", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot
func ReadSnapshot(path string) ([]models.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPersistence(path, "failed to read snapshot", err)
	}
	var records []models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewPersistence(path, "failed to decode snapshot", err)
	}
	return records, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
