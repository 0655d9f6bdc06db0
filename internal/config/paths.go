package config

import (
	"os"
	"path/filepath"
)

// GetVigiaHome returns VIGIA_HOME or ~/.vigia default
func GetVigiaHome() string {
	vigiaHome := os.Getenv("VIGIA_HOME")
	if vigiaHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".vigia"
		}
		return filepath.Join(homeDir, ".vigia")
	}
	return ExpandPath(vigiaHome)
}

// GetStateDir returns the directory holding the transactional state
func GetStateDir() string {
	return GetVigiaHome()
}

// GetArchiveDBPath returns $VIGIA_HOME/archive.db
func GetArchiveDBPath() string {
	return filepath.Join(GetVigiaHome(), "archive.db")
}

// GetSettingsPath returns $VIGIA_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetVigiaHome(), "settings.json")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
