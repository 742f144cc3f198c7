package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"awsnav/logging"

	"github.com/BurntSushi/toml"
)

// Login methods accepted in settings and on the command line
const (
	LoginMethodCLI    = "cli"
	LoginMethodDevice = "device"
)

// Settings represents the structure of config.toml
type Settings struct {
	DefaultClient     string `toml:"default_client"`
	DefaultAccount    string `toml:"default_account"`
	DefaultRole       string `toml:"default_role"`
	UnifiedMode       bool   `toml:"unified_mode"`
	SetDefault        bool   `toml:"set_default"`
	List              bool   `toml:"list"`
	Recent            bool   `toml:"recent"`
	MaxRecentProfiles int    `toml:"max_recent_profiles"`
	AWSConfigPath     string `toml:"aws_config_path"`
	LoginMethod       string `toml:"login_method"`
	OpenConsole       bool   `toml:"open_console"`
	Debug             bool   `toml:"debug"`
}

// LoadSettings loads settings from path.
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	md, err := toml.Decode(string(data), &settings)
	if err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}

	for _, key := range md.Undecoded() {
		logging.Logger.Warn("Ignoring unknown setting", "key", key.String(), "file", path)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if settings.AWSConfigPath != "" {
		settings.AWSConfigPath = ExpandPath(settings.AWSConfigPath)
	}

	return &settings, nil
}

// Validate checks values that cannot be used as given
func (s *Settings) Validate() error {
	switch s.LoginMethod {
	case "", LoginMethodCLI, LoginMethodDevice:
	default:
		return fmt.Errorf("invalid login_method %q: expected %q or %q", s.LoginMethod, LoginMethodCLI, LoginMethodDevice)
	}

	if s.MaxRecentProfiles < 0 {
		return fmt.Errorf("max_recent_profiles must not be negative, got %d", s.MaxRecentProfiles)
	}

	return nil
}
