package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - BABYLOG_CONFIG_PATH: config file location (default: ~/.config/babylog.toml)
//   - BABYLOG_HOME: base directory for babylog data (default: ~/.local/share/babylog)
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

// getConfigPath returns the config file path, checking BABYLOG_CONFIG_PATH first,
// then falling back to ~/.config/babylog.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("BABYLOG_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "babylog.toml"), nil
}

// getBaseDir returns the data directory, checking BABYLOG_HOME first,
// then falling back to the XDG default ~/.local/share/babylog.
func getBaseDir() (string, error) {
	if path := os.Getenv("BABYLOG_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "babylog"), nil
}
