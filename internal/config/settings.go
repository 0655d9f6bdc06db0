package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"vigia/internal/domain"
)

// Settings represents the structure of $VIGIA_HOME/settings.json.
// Pointer fields distinguish "not configured" from an explicit zero.
type Settings struct {
	ArchiveDBPath      string `json:"archive_db_path,omitempty"`
	BackupCount        *int   `json:"backup_count,omitempty"`
	ContextInlineLimit *int   `json:"context_inline_limit,omitempty"`
	Debug              *bool  `json:"debug,omitempty"`
	MaxActions         *int   `json:"max_actions,omitempty"`
	MaxActiveRoots     *int   `json:"max_active_roots,omitempty"`
	MaxCheckpoints     *int   `json:"max_checkpoints,omitempty"`
	MaxLogFiles        *int   `json:"max_log_files,omitempty"`
	RetentionHours     *int   `json:"retention_hours,omitempty"`
	StaleThresholdMins *int   `json:"stale_threshold_minutes,omitempty"`
}

// LoadSettings loads settings from $VIGIA_HOME/settings.json.
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	if settings.ArchiveDBPath != "" {
		settings.ArchiveDBPath = ExpandPath(settings.ArchiveDBPath)
	}

	return &settings, nil
}

// SaveSettings saves settings to $VIGIA_HOME/settings.json
func SaveSettings(settings *Settings) error {
	if err := os.MkdirAll(GetVigiaHome(), 0755); err != nil {
		return fmt.Errorf("failed to create vigia home: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(GetSettingsPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// StaleThreshold returns the configured threshold or the domain default
func (s *Settings) StaleThreshold() time.Duration {
	if s.StaleThresholdMins != nil {
		return time.Duration(*s.StaleThresholdMins) * time.Minute
	}
	return domain.DefaultStaleThreshold
}

// ArchivePath returns the configured archive location or the default
func (s *Settings) ArchivePath() string {
	if s.ArchiveDBPath != "" {
		return s.ArchiveDBPath
	}
	return GetArchiveDBPath()
}
