// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"testing"
)

func parseArgs(t *testing.T, argv ...string) (Command, Args) {
	t.Helper()
	// Parse reads os.Args; swap it for the test.
	old := os.Args
	os.Args = append([]string{"loom"}, argv...)
	t.Cleanup(func() { os.Args = old })
	return Parse()
}

func TestParseDefaultsToTUI(t *testing.T) {
	cmd, args := parseArgs(t)
	if cmd != CommandTUI {
		t.Errorf("cmd = %v, want CommandTUI", cmd)
	}
	if args != (Args{}) {
		t.Errorf("args = %+v, want zero", args)
	}
}

func TestParseSubcommands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{[]string{"tui"}, CommandTUI},
		{[]string{"chat"}, CommandChat},
		{[]string{"threads"}, CommandThreads},
		{[]string{"sessions"}, CommandThreads},
		{[]string{"export", "abc"}, CommandExport},
		{[]string{"version"}, CommandVersion},
		{[]string{"--version"}, CommandVersion},
		{[]string{"help"}, CommandHelp},
		{[]string{"-h"}, CommandHelp},
	}
	for _, tt := range tests {
		if cmd, _ := parseArgs(t, tt.argv...); cmd != tt.want {
			t.Errorf("Parse(%v) = %v, want %v", tt.argv, cmd, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	cmd, args := parseArgs(t, "chat", "-m", "haiku", "--config", "/tmp/c.toml", "--demo", "-q")
	if cmd != CommandChat {
		t.Fatalf("cmd = %v", cmd)
	}
	if args.Model != "haiku" {
		t.Errorf("Model = %q", args.Model)
	}
	if args.Config != "/tmp/c.toml" {
		t.Errorf("Config = %q", args.Config)
	}
	if !args.Demo || !args.Quiet {
		t.Errorf("Demo/Quiet = %v/%v, want true/true", args.Demo, args.Quiet)
	}
}

func TestParseExportThreadAndOutput(t *testing.T) {
	_, args := parseArgs(t, "export", "my-thread", "-o", "out.md")
	if args.ThreadID != "my-thread" {
		t.Errorf("ThreadID = %q", args.ThreadID)
	}
	if args.Output != "out.md" {
		t.Errorf("Output = %q", args.Output)
	}
}

func TestParseFlagMissingValue(t *testing.T) {
	// A trailing flag with no value is ignored rather than panicking.
	cmd, args := parseArgs(t, "chat", "-m")
	if cmd != CommandChat || args.Model != "" {
		t.Errorf("cmd/Model = %v/%q", cmd, args.Model)
	}
}
