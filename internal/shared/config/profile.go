package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the CLI configuration stored in ~/.sheetchart/config.yaml.
type Profile struct {
	Name       string        `yaml:"name"`
	APIBaseURL string        `yaml:"api_url"`
	Timeout    time.Duration `yaml:"timeout"`
	SessionDB  string        `yaml:"session_db"`
	ExportDir  string        `yaml:"export_dir"`
}

// DefaultProfileDir returns the directory holding CLI config and session data.
func DefaultProfileDir() string {
	if dir := strings.TrimSpace(os.Getenv("SHEETCHART_HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sheetchart"
	}
	return filepath.Join(home, ".sheetchart")
}

// LoadProfile reads the YAML profile at path. A missing file is not an error;
// defaults are returned instead. Environment variables override file values.
func LoadProfile(path string) (Profile, error) {
	dir := DefaultProfileDir()
	p := Profile{
		Name:       "default",
		APIBaseURL: defaultAPIBaseURL,
		Timeout:    30 * time.Second,
		SessionDB:  filepath.Join(dir, "session.db"),
		ExportDir:  filepath.Join(dir, "exports"),
	}

	if strings.TrimSpace(path) == "" {
		path = filepath.Join(dir, "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fromFile Profile
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
		}
		p = mergeProfile(p, fromFile)
	case errors.Is(err, os.ErrNotExist):
	default:
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	if v := strings.TrimSpace(os.Getenv("SHEETCHART_API_URL")); v != "" {
		p.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHEETCHART_PROFILE")); v != "" {
		p.Name = v
	}
	p.APIBaseURL = normalizeBaseURL(p.APIBaseURL)
	return p, nil
}

// SaveProfile writes the profile as YAML, creating the parent directory.
func SaveProfile(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeProfile(base, over Profile) Profile {
	if strings.TrimSpace(over.Name) != "" {
		base.Name = over.Name
	}
	if strings.TrimSpace(over.APIBaseURL) != "" {
		base.APIBaseURL = over.APIBaseURL
	}
	if over.Timeout > 0 {
		base.Timeout = over.Timeout
	}
	if strings.TrimSpace(over.SessionDB) != "" {
		base.SessionDB = over.SessionDB
	}
	if strings.TrimSpace(over.ExportDir) != "" {
		base.ExportDir = over.ExportDir
	}
	return base
}
