package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PANTRY_CONFIG_PATH: config file location (default: ~/.config/pantry.toml)
//   - PANTRY_HOME: base directory for pantry data (default: ~/.local/share/pantry)
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
	}, nil
}

// getConfigPath returns the config file path, checking PANTRY_CONFIG_PATH first,
// then falling back to ~/.config/pantry.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("PANTRY_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pantry.toml"), nil
}

// getBaseDir returns the base directory for pantry data, checking PANTRY_HOME
// first, then falling back to the XDG default ~/.local/share/pantry.
func getBaseDir() (string, error) {
	if path := os.Getenv("PANTRY_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "pantry"), nil
}
