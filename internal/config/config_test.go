// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/loom-tui/internal/models"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.DefaultModel != models.Default() {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8900" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.SubmitDelay() != time.Second {
		t.Errorf("SubmitDelay = %v", cfg.SubmitDelay())
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.UI.Theme != "auto" || !cfg.UI.Markdown {
		t.Errorf("UI = %+v", cfg.UI)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.PollIntervalMs != 100 {
		t.Errorf("PollIntervalMs = %d", cfg.API.PollIntervalMs)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "us.anthropic.claude-3-5-haiku-20241022-v1:0"

[api]
base_url = "http://localhost:9000"
poll_interval_ms = 250

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:9000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.PollIntervalMs != 250 {
		t.Errorf("PollIntervalMs = %d", cfg.API.PollIntervalMs)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}
	// Unset keys keep their defaults.
	if cfg.API.SubmitDelayMs != 1000 {
		t.Errorf("SubmitDelayMs = %d", cfg.API.SubmitDelayMs)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOOM_THEME", "dark")
	t.Setenv("LOOM_DEMO", "1")
	t.Setenv("LOOM_POLL_INTERVAL_MS", "50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("Theme = %q, env should win", cfg.UI.Theme)
	}
	if !cfg.API.Demo {
		t.Error("Demo should be enabled by LOOM_DEMO=1")
	}
	if cfg.API.PollIntervalMs != 50 {
		t.Errorf("PollIntervalMs = %d", cfg.API.PollIntervalMs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, false},
		{"not a url", func(c *Config) { c.API.BaseURL = "::bad::" }, false},
		{"poll too fast", func(c *Config) { c.API.PollIntervalMs = 5 }, false},
		{"negative delay", func(c *Config) { c.API.SubmitDelayMs = -1 }, false},
		{"zero delay ok", func(c *Config) { c.API.SubmitDelayMs = 0 }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate should reject")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := Default()
	want.UI.Theme = "dark"
	want.API.PollIntervalMs = 200

	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.UI.Theme != "dark" || got.API.PollIntervalMs != 200 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := Default().Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	updated := Default()
	updated.UI.Theme = "dark"
	if err := updated.Save(path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.UI.Theme != "dark" {
			t.Errorf("reloaded theme = %q", cfg.UI.Theme)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWatcherSkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := Default().Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	// A broken file must not produce a callback.
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("watcher delivered a config from a broken file: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
