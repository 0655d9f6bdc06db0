package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"vigia/internal/domain"
	"vigia/logging"
)

// WriteRecovery persists an orphaned-work artifact as its own file,
// outside the transactional state, so it survives even if the working
// set is later pruned.
func (s *FileStore) WriteRecovery(artifact domain.RecoveryArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize recovery artifact: %w", err)
	}

	path := filepath.Join(s.dir, recoveryDir, artifact.SessionID+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write recovery artifact for %s: %w", artifact.SessionID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to place recovery artifact for %s: %w", artifact.SessionID, err)
	}
	return nil
}

// ReadRecovery loads the artifact for one session
func (s *FileStore) ReadRecovery(sessionID string) (*domain.RecoveryArtifact, error) {
	path := filepath.Join(s.dir, recoveryDir, sessionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recovery artifact for %s: %w", sessionID, domain.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to read recovery artifact for %s: %w", sessionID, err)
	}

	var artifact domain.RecoveryArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse recovery artifact for %s: %w", sessionID, err)
	}
	return &artifact, nil
}

// DeleteRecovery removes a session's artifact once its content has been
// preserved elsewhere. Deleting a missing artifact is a no-op.
func (s *FileStore) DeleteRecovery(sessionID string) error {
	path := filepath.Join(s.dir, recoveryDir, sessionID+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete recovery artifact for %s: %w", sessionID, err)
	}
	return nil
}

// ListRecovery returns all persisted artifacts, newest first. Unreadable
// entries are logged and skipped rather than failing the listing.
func (s *FileStore) ListRecovery() ([]domain.RecoveryArtifact, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, recoveryDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery artifacts: %w", err)
	}

	artifacts := make([]domain.RecoveryArtifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, recoveryDir, entry.Name()))
		if err != nil {
			logging.Logger.Warn("skipping unreadable recovery artifact",
				"file", entry.Name(), "error", err)
			continue
		}
		var artifact domain.RecoveryArtifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			logging.Logger.Warn("skipping malformed recovery artifact",
				"file", entry.Name(), "error", err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}
