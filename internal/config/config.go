// Package config loads the themetool configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// FileName is the configuration file name inside Dir.
const FileName = "config.yaml"

// Config holds the user's defaults. Command-line flags override every field.
type Config struct {
	// OptionalTargets are hooked by install in addition to winlogon.exe,
	// e.g. [explorer, LogonUI].
	OptionalTargets []string `yaml:"optional_targets"`

	// Reboot is "ask", "always" or "never".
	Reboot string `yaml:"reboot"`

	// History enables the operation journal.
	History     bool   `yaml:"history"`
	HistoryPath string `yaml:"history_path,omitempty"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	// PayloadPath overrides where SecureUxTheme.dll is read from.
	PayloadPath string `yaml:"payload_path,omitempty"`

	WatchInterval time.Duration `yaml:"watch_interval"`
}

// Dir returns the themetool config directory. THEMETOOL_CONFIG_DIR wins;
// otherwise it is "themetool" under the user config directory
// (%AppData% on Windows).
func Dir() (string, error) {
	if dir := os.Getenv("THEMETOOL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "themetool"), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Reboot:        "ask",
		History:       true,
		LogLevel:      "info",
		WatchInterval: 5 * time.Second,
	}
}

// Load reads {dir}/config.yaml over the defaults. A missing file yields
// the defaults without an error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return cfg, nil
}

// Save writes cfg to {dir}/config.yaml, creating dir if needed.
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0644)
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if _, err := patcher.ParseRebootPolicy(c.Reboot); err != nil {
		return err
	}
	if _, err := c.Targets(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.WatchInterval < 0 {
		return fmt.Errorf("watch_interval must not be negative")
	}
	return nil
}

// Targets resolves OptionalTargets to patcher targets.
func (c *Config) Targets() (patcher.TargetSet, error) {
	set := patcher.NewTargetSet()
	for _, name := range c.OptionalTargets {
		t, ok := patcher.ParseTarget(name)
		if !ok {
			return nil, fmt.Errorf("unknown optional target %q (want explorer, LogonUI or SystemSettings)", name)
		}
		set.Add(t)
	}
	return set, nil
}

// HistoryFile returns the journal path, defaulting to history.db in dir.
func (c *Config) HistoryFile(dir string) string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return filepath.Join(dir, "history.db")
}
