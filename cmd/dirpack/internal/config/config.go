// Package config loads the optional dirpack configuration file.
//
// Example ($XDG_CONFIG_HOME/dirpack/config.yaml):
//
//	format: tar.gz
//	level: best
//	on_error: continue
//	max_depth: 64
//	exclude:
//	  - .git
//	  - "*.tmp"
//
// A missing file yields an empty Config. Unset fields fall back to the
// library defaults, and command-line flags override whatever is set here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/meigma/dirpack"
	"github.com/meigma/dirpack/archive"
)

// Config mirrors the command-line flags. Nil fields are unset.
type Config struct {
	Format      *string `yaml:"format"`
	Level       *string `yaml:"level"`
	OnError     *string `yaml:"on_error"`
	MaxDepth    *int    `yaml:"max_depth"`
	MaxEntries  *int    `yaml:"max_entries"`
	KeepPartial *bool   `yaml:"keep_partial"`
	Strict      *bool   `yaml:"strict"`

	// Exclude holds glob patterns matched against entry base names.
	Exclude []string `yaml:"exclude"`
}

// DefaultPath returns the config file path under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, "dirpack", "config.yaml"), nil
}

// Load reads and validates the config file at path.
// If the file doesn't exist, it returns an empty config and nil error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Format != nil {
		if _, err := archive.ParseFormat(*c.Format); err != nil {
			return fmt.Errorf("format: %w", err)
		}
	}
	if c.Level != nil {
		if _, err := archive.ParseLevel(*c.Level); err != nil {
			return fmt.Errorf("level: %w", err)
		}
	}
	if c.OnError != nil {
		if _, err := dirpack.ParseErrorPolicy(*c.OnError); err != nil {
			return fmt.Errorf("on_error: %w", err)
		}
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return fmt.Errorf("max_depth: must not be negative, got %d", *c.MaxDepth)
	}
	for _, pattern := range c.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("exclude %q: %w", pattern, err)
		}
	}
	return nil
}

// Skip returns a predicate excluding entries whose base name matches one of
// the Exclude patterns, or nil when there are none.
func (c *Config) Skip() dirpack.SkipFunc {
	if len(c.Exclude) == 0 {
		return nil
	}
	patterns := c.Exclude
	return func(_ string, d fs.DirEntry) bool {
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, d.Name()); ok {
				return true
			}
		}
		return false
	}
}
