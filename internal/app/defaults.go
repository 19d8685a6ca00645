package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SBACK_CONFIG_PATH: config file location (default: ~/.config/sback.toml)
//   - SBACK_HOME: base directory for sback data (default: ~/.local/share/sback)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"backup_dir":  filepath.Join(baseDir, "backups"),
	}, nil
}

// getConfigPath returns the config file path, checking SBACK_CONFIG_PATH env
// var first, then falling back to the default ~/.config/sback.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SBACK_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sback.toml"), nil
}

// getBaseDir returns the base directory for sback data, checking SBACK_HOME
// env var first, then falling back to the XDG default ~/.local/share/sback.
func getBaseDir() (string, error) {
	if path := os.Getenv("SBACK_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "sback"), nil
}
