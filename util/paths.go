package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppConfigDir = ".config/fedcal"
	// HomeEnv overrides the config directory, e.g. for containers.
	HomeEnv = "FEDCAL_HOME"
)

// GetConfigDir returns the fedcal config directory and creates it if
// needed. FEDCAL_HOME wins over ~/.config/fedcal.
func GetConfigDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(homeDir, AppConfigDir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ResolveFilePath prefers ./filename and falls back to the config
// directory, which is also where new files are created.
func ResolveFilePath(filename string) string {
	return resolve(filename)
}

// ResolveFilePathWithSubdir is ResolveFilePath for subdir/filename. The
// subdirectory is created in the config directory when missing.
func ResolveFilePathWithSubdir(subdir, filename string) string {
	return resolve(filepath.Join(subdir, filename))
}

func resolve(rel string) string {
	if _, err := os.Stat(rel); err == nil {
		return rel
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return rel
	}
	userPath := filepath.Join(configDir, rel)
	if dir := filepath.Dir(userPath); dir != configDir {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return rel
		}
	}
	return userPath
}
