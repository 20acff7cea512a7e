// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for loom.
//
// Configuration is TOML at ~/.loom/config.toml with sensible defaults
// and LOOM_* environment variable overrides. A watcher can reload the
// file on change so theme and polling settings apply live.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/loom-tui/internal/models"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete loom configuration.
type Config struct {
	// DefaultModel is the backend model used for branches that have not
	// selected one.
	DefaultModel string `toml:"default_model"`

	// StoragePath overrides the state database location.
	StoragePath string `toml:"storage_path"`

	// API configures the backend boundary.
	API APIConfig `toml:"api"`

	// UI configures presentation.
	UI UIConfig `toml:"ui"`
}

// APIConfig configures the conversation backend client and the
// streaming controller timing.
type APIConfig struct {
	// BaseURL of the conversation backend.
	BaseURL string `toml:"base_url"`

	// Demo switches to the in-process scripted backend.
	Demo bool `toml:"demo"`

	// SubmitDelayMs is the gap between submission and the first poll.
	SubmitDelayMs int `toml:"submit_delay_ms"`

	// PollIntervalMs is the gap between polls.
	PollIntervalMs int `toml:"poll_interval_ms"`

	// RequestTimeoutMs bounds individual backend requests.
	RequestTimeoutMs int `toml:"request_timeout_ms"`

	// PollRatePerSec caps poll requests per second.
	PollRatePerSec float64 `toml:"poll_rate_per_sec"`
}

// UIConfig configures presentation.
type UIConfig struct {
	// Theme is "dark", "light", or "auto" (detect from terminal).
	Theme string `toml:"theme"`

	// Markdown enables glamour rendering of assistant messages.
	Markdown bool `toml:"markdown"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultModel: models.Default(),
		API: APIConfig{
			BaseURL:          "http://127.0.0.1:8900",
			SubmitDelayMs:    1000,
			PollIntervalMs:   100,
			RequestTimeoutMs: 30000,
			PollRatePerSec:   20,
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// SubmitDelay returns the submit delay as a duration.
func (c *Config) SubmitDelay() time.Duration {
	return time.Duration(c.API.SubmitDelayMs) * time.Millisecond
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.API.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutMs) * time.Millisecond
}

// =============================================================================
// LOADING
// =============================================================================

// ConfigDir returns ~/.loom, creating it if needed.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".loom")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPath returns ~/.loom/config.toml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads configuration in precedence order: built-in defaults, then
// the TOML file (a missing file is not an error), then LOOM_* env
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies LOOM_* environment variables over the
// loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOOM_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("LOOM_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LOOM_DEMO"); v != "" {
		cfg.API.Demo = v == "1" || v == "true"
	}
	if v := os.Getenv("LOOM_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	if v := os.Getenv("LOOM_STORAGE_PATH"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("LOOM_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.API.PollIntervalMs = n
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
		}
	}
	if c.API.PollIntervalMs < 10 {
		return errors.New("api.poll_interval_ms must be at least 10")
	}
	if c.API.SubmitDelayMs < 0 {
		return errors.New("api.submit_delay_ms must not be negative")
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("invalid ui.theme %q (dark, light, auto)", c.UI.Theme)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
