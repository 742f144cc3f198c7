package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appDirName       = "aws-sso-navigator"
	settingsFileName = "config.toml"
	recentFileName   = "recent.toml"
)

// AppDir returns AWSNAV_HOME, or aws-sso-navigator under XDG_CONFIG_HOME (~/.config by default)
func AppDir() (string, error) {
	if home := os.Getenv("AWSNAV_HOME"); home != "" {
		return ExpandPath(home), nil
	}

	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appDirName), nil
}

// SettingsPath returns the settings file location
func SettingsPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}

// RecentPath returns the recent profiles file location
func RecentPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, recentFileName), nil
}

// AWSConfigPath picks the AWS config file: override first, then AWS_CONFIG_FILE, then ~/.aws/config
func AWSConfigPath(override string) (string, error) {
	if override != "" {
		return ExpandPath(override), nil
	}

	if env := os.Getenv("AWS_CONFIG_FILE"); env != "" {
		return ExpandPath(env), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".aws", "config"), nil
}

// ExpandPath expands ~ to the home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return homeDir
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
