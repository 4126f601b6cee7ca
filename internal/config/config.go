// Package config loads hitung settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file read when none is named.
const DefaultFile = "hitung.yaml"

// Config holds the session settings.
type Config struct {
	Backend     string `yaml:"backend"`
	Debug       bool   `yaml:"debug"`
	TraceFile   string `yaml:"trace_file"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Prompt      string `yaml:"prompt"`
	ExitOnError bool   `yaml:"exit_on_error"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

var (
	backends   = []string{"interp", "wasm"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend:   "wasm",
		TraceFile: "hitung.ll",
		LogLevel:  "warn",
		LogFormat: "text",
		Prompt:    "> ",
	}
}

// Load reads the file at path over the defaults. If the file does not exist
// and optional is true, the defaults are returned.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that enumerated settings hold known values.
func (c *Config) Validate() error {
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("config: backend %q must be one of %v", c.Backend, backends)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("config: log_level %q must be one of %v", c.LogLevel, logLevels)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("config: log_format %q must be one of %v", c.LogFormat, logFormats)
	}
	return nil
}
