package config

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"
)

// Profile is a named, reusable bundle of RunConfig overrides, saved as YAML
// under ~/.duskline/profiles/<name>.yaml. It supplements the flag/config-file
// surface with saved presets (e.g. "nightly-github", "one-off-org-sweep").
type Profile struct {
	Name          string   `yaml:"name"`
	EventDBPath   string   `yaml:"event_db_path,omitempty"`
	EventFilePath string   `yaml:"event_file_path,omitempty"`
	OrgsFilePath  string   `yaml:"orgs_file_path,omitempty"`
	Ordering      string   `yaml:"ordering,omitempty"`
	Workers       int      `yaml:"workers,omitempty"`
	BaseTimeout   int      `yaml:"base_timeout_sec,omitempty"`
	MaxRetries    int      `yaml:"max_retries,omitempty"`
	ResultsDir    string   `yaml:"results_dir,omitempty"`
	Channels      []string `yaml:"channels,omitempty"`
}

func profilePath(home, name string) string {
	return filepath.Join(home, ProfilesDir, name+".yaml")
}

// SaveProfile writes p to ~/.duskline/profiles/<p.Name>.yaml.
func SaveProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(home, ProfilesDir), 0o700); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("serialising profile: %w", err)
	}
	return os.WriteFile(profilePath(home, p.Name), data, 0o600)
}

// LoadProfile reads a named profile.
func LoadProfile(name string) (*Profile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(profilePath(home, name))
	if err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", name, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", name, err)
	}
	return &p, nil
}

// ListProfiles returns the names of all saved profiles.
func ListProfiles() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ProfilesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profiles directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const ext = ".yaml"
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Apply overlays non-zero fields of p onto rc.
func (p Profile) Apply(rc *RunConfig) error {
	if p.EventDBPath != "" {
		rc.Source.EventDBPath = p.EventDBPath
	}
	if p.EventFilePath != "" {
		rc.Source.EventFilePath = p.EventFilePath
	}
	if p.OrgsFilePath != "" {
		rc.Source.OrgsFilePath = p.OrgsFilePath
	}
	if p.Ordering != "" {
		ord, err := ParseOrdering(p.Ordering)
		if err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		rc.Ordering = ord
	}
	if p.Workers != 0 {
		rc.Workers = p.Workers
	}
	if p.BaseTimeout != 0 {
		rc.BaseTimeout = p.BaseTimeout
	}
	if p.MaxRetries != 0 {
		rc.MaxRetries = p.MaxRetries
	}
	if p.ResultsDir != "" {
		rc.ResultsDir = p.ResultsDir
	}
	if len(p.Channels) > 0 {
		rc.Channels = p.Channels
		rc.Notify.Channels = p.Channels
	}
	return nil
}
