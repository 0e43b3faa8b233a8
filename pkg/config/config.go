// Package config handles loading and saving lg configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/lg/config.yaml
//   - State:   ~/.local/state/lg/ (export history, last source)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceConfig selects where telemetry snapshots come from.
type SourceConfig struct {
	// Type is one of "auto", "synthetic", "file", "http", "sqlite".
	// "auto" discovers the freshest valid source under DataDir.
	Type string `yaml:"type,omitempty"`
	Path string `yaml:"path,omitempty"` // file and sqlite sources
	URL  string `yaml:"url,omitempty"`  // http sources

	DataDir string `yaml:"data_dir,omitempty"` // auto-discovery root

	// Synthetic generator tuning.
	Population int   `yaml:"population,omitempty"`
	Seed       int64 `yaml:"seed,omitempty"`
}

// RefreshConfig tunes the background fetch cadence. Zero values fall
// back to the built-in defaults; environment variables still win.
type RefreshConfig struct {
	IntervalMS     int `yaml:"interval_ms,omitempty"`
	JitterMS       int `yaml:"jitter_ms,omitempty"`
	FetchTimeoutMS int `yaml:"fetch_timeout_ms,omitempty"`
}

// Config is the top-level configuration for lg.
type Config struct {
	Source  SourceConfig  `yaml:"source,omitempty"`
	Refresh RefreshConfig `yaml:"refresh,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Type:       "auto",
			Population: 30,
		},
	}
}

// ConfigDir returns the XDG config directory for lg.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lg")
}

// StateDir returns the XDG state directory for lg.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "lg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "lg")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source.Path = expandHome(cfg.Source.Path)
	cfg.Source.DataDir = expandHome(cfg.Source.DataDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate rejects combinations the source builder cannot act on.
func (c Config) Validate() error {
	switch c.Source.Type {
	case "", "auto", "synthetic":
	case "file", "sqlite":
		if c.Source.Path == "" {
			return fmt.Errorf("source type %q requires a path", c.Source.Type)
		}
	case "http":
		if c.Source.URL == "" {
			return fmt.Errorf("source type http requires a url")
		}
		if !strings.HasPrefix(c.Source.URL, "http://") && !strings.HasPrefix(c.Source.URL, "https://") {
			return fmt.Errorf("source url must be http or https")
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}
	if c.Source.Population < 0 {
		return fmt.Errorf("population cannot be negative")
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
