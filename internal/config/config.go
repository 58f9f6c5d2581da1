// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/smileynet/condatools/internal/conda"
)

// Config holds all condatools configuration.
type Config struct {
	Backend Backend `yaml:"backend"`
	Log     Log     `yaml:"log"`
	UI      UI      `yaml:"ui"`
}

// Backend describes how the environment-manager backend is invoked.
type Backend struct {
	Command string   `yaml:"command"` // Executable implementing the command tags.
	Args    []string `yaml:"args"`    // Placed before the command vector.
	Dir     string   `yaml:"dir"`     // Working directory; empty means current.
}

// Log holds diagnostic logging settings.
type Log struct {
	Debug bool   `yaml:"debug"`
	Root  string `yaml:"root"` // Directory receiving .condatools/logs.
}

// UI holds defaults for dashboard prompts.
type UI struct {
	ExportFormat   string `yaml:"export_format"` // "yml" | "txt"
	ExportNoBuilds bool   `yaml:"export_no_builds"`
	Python         string `yaml:"python"` // Interpreter version for new environments.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: Backend{
			Command: "python3",
			Args:    []string{"backend/main.py"},
		},
		Log: Log{
			Root: ".",
		},
		UI: UI{
			ExportFormat: string(conda.FormatYML),
			Python:       "3.11",
		},
	}
}

// UserPath returns the per-user config file path, or "" if the home
// directory is unknown.
func UserPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "condatools", "config.yaml")
}

// ProjectPath is the per-directory config file, relative to the working directory.
const ProjectPath = ".condatools/config.yaml"

// Paths returns the config layers in increasing priority.
func Paths() []string {
	var paths []string
	if p := UserPath(); p != "" {
		paths = append(paths, p)
	}
	return append(paths, ProjectPath)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Backend.Command == "" {
		return errors.New("config: backend.command cannot be empty")
	}
	if slices.Contains(c.Backend.Args, "") {
		return errors.New("config: backend.args cannot contain empty entries")
	}
	if _, err := conda.ParseExportFormat(c.UI.ExportFormat); err != nil {
		return fmt.Errorf("config: ui.export_format: %w", err)
	}
	if c.UI.Python == "" {
		return errors.New("config: ui.python cannot be empty")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: CONDATOOLS_BACKEND, CONDATOOLS_BACKEND_DIR,
// CONDATOOLS_DEBUG, CONDATOOLS_PYTHON.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("CONDATOOLS_BACKEND"); v != "" {
		c.Backend.Command = v
	}
	if v := os.Getenv("CONDATOOLS_BACKEND_DIR"); v != "" {
		c.Backend.Dir = v
	}
	if v := os.Getenv("CONDATOOLS_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid CONDATOOLS_DEBUG %q: %w", v, err)
		}
		c.Log.Debug = b
	}
	if v := os.Getenv("CONDATOOLS_PYTHON"); v != "" {
		c.UI.Python = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Backend *rawBackend `yaml:"backend"`
	Log     *rawLog     `yaml:"log"`
	UI      *rawUI      `yaml:"ui"`
}

type rawBackend struct {
	Command *string   `yaml:"command"`
	Args    *[]string `yaml:"args"`
	Dir     *string   `yaml:"dir"`
}

type rawLog struct {
	Debug *bool   `yaml:"debug"`
	Root  *string `yaml:"root"`
}

type rawUI struct {
	ExportFormat   *string `yaml:"export_format"`
	ExportNoBuilds *bool   `yaml:"export_no_builds"`
	Python         *string `yaml:"python"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
// A set backend.args list replaces the previous one entirely.
func (c *Config) merge(layer *rawConfig) {
	if b := layer.Backend; b != nil {
		if b.Command != nil {
			c.Backend.Command = *b.Command
		}
		if b.Args != nil {
			c.Backend.Args = slices.Clone(*b.Args)
		}
		if b.Dir != nil {
			c.Backend.Dir = *b.Dir
		}
	}
	if l := layer.Log; l != nil {
		if l.Debug != nil {
			c.Log.Debug = *l.Debug
		}
		if l.Root != nil {
			c.Log.Root = *l.Root
		}
	}
	if u := layer.UI; u != nil {
		if u.ExportFormat != nil {
			c.UI.ExportFormat = *u.ExportFormat
		}
		if u.ExportNoBuilds != nil {
			c.UI.ExportNoBuilds = *u.ExportNoBuilds
		}
		if u.Python != nil {
			c.UI.Python = *u.Python
		}
	}
}
