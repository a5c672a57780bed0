package config

import (
	"os"
	"path/filepath"
)

const appName = "smartspar"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultPath returns the config file path, honoring SMARTSPAR_CONFIG.
func DefaultPath() string {
	return Env(EnvConfig, filepath.Join(XDGConfigHome(), appName, "config.toml"))
}

// DefaultDBPath returns the default path for the history database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "history.db")
}

// DefaultRecordingDir returns the default directory for session recordings.
func DefaultRecordingDir() string {
	return filepath.Join(XDGDataHome(), appName, "recordings")
}
