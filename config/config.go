package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"awsnav/importer"
	"awsnav/profile"

	"gopkg.in/ini.v1"
)

// Manager handles AWS config file operations
type Manager struct {
	configPath string
}

// NewManager creates a manager for the AWS config file at configPath
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Path returns the AWS config file path
func (m *Manager) Path() string {
	return m.configPath
}

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		AllowNonUniqueSections:   true,
		SpaceBeforeInlineComment: true,
		SkipUnrecognizableLines:  true,
	}
}

// ReadSections loads every section of the AWS config file. A missing file has no sections.
func (m *Manager) ReadSections() ([]profile.RawSection, error) {
	cfg, err := ini.LoadSources(loadOptions(), m.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []profile.RawSection{}, nil
		}
		return nil, fmt.Errorf("failed to load aws config file: %w", err)
	}

	var sections []profile.RawSection

	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}

		keys := make(map[string]string, len(section.Keys()))
		for _, key := range section.Keys() {
			keys[key.Name()] = key.String()
		}

		sections = append(sections, profile.RawSection{
			Header: section.Name(),
			Keys:   keys,
		})
	}

	return sections, nil
}

// AppendProfiles appends new profile sections to the AWS config file. Existing content is
// left as it is.
func (m *Manager) AppendProfiles(additions []importer.Addition) error {
	if len(additions) == 0 {
		return nil
	}

	cfg := ini.Empty()

	for _, addition := range additions {
		section, err := cfg.NewSection("profile " + addition.Name)
		if err != nil {
			return fmt.Errorf("failed to create section for profile %s: %w", addition.Name, err)
		}

		section.Key(profile.KeySSOSession).SetValue(addition.SSOSession)
		section.Key(profile.KeySSOAccountID).SetValue(addition.AccountID)
		section.Key(profile.KeySSORoleName).SetValue(addition.RoleName)
		if addition.Region != "" {
			section.Key(profile.KeyRegion).SetValue(addition.Region)
		}
		if addition.Output != "" {
			section.Key(profile.KeyOutput).SetValue(addition.Output)
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to render profiles: %w", err)
	}

	existing, err := os.ReadFile(m.configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read aws config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0700); err != nil {
		return fmt.Errorf("failed to create aws config directory: %w", err)
	}

	f, err := os.OpenFile(m.configPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open aws config file: %w", err)
	}
	defer f.Close()

	var out bytes.Buffer
	if len(existing) > 0 {
		if !bytes.HasSuffix(existing, []byte("\n")) {
			out.WriteString("\n")
		}
		out.WriteString("\n")
	}
	out.Write(buf.Bytes())

	if _, err := f.Write(out.Bytes()); err != nil {
		return fmt.Errorf("failed to write aws config file: %w", err)
	}

	return f.Close()
}
