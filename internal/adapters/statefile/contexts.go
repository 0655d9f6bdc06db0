package statefile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteContext stores an oversized context payload as its own file and
// returns the reference recorded against the session or checkpoint. The
// write goes through a temp file plus rename so a crash never leaves a
// truncated payload behind a live reference.
func (s *FileStore) WriteContext(key, payload string) (string, error) {
	ref := filepath.Join(contextsDir, key+".ctx")

	tmp, err := os.CreateTemp(filepath.Join(s.dir, contextsDir), ".ctx-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp context file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write context for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync context for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close context for %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, ref)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to place context for %s: %w", key, err)
	}
	return ref, nil
}

// ReadContext resolves a reference produced by WriteContext
func (s *FileStore) ReadContext(ref string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("failed to read context %s: %w", ref, err)
	}
	return string(data), nil
}

// DeleteContext removes an out-of-line payload by key. Deleting a
// payload that was never written out-of-line is a no-op.
func (s *FileStore) DeleteContext(key string) error {
	return s.DeleteContextRef(filepath.Join(contextsDir, key+".ctx"))
}

// DeleteContextRef removes an out-of-line payload by the reference
// WriteContext returned. Missing files are a no-op.
func (s *FileStore) DeleteContextRef(ref string) error {
	if err := os.Remove(filepath.Join(s.dir, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete context %s: %w", ref, err)
	}
	return nil
}
