// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line entry points for loom.
//
// Command dispatch:
//   loom              Launch the TUI (default)
//   loom tui          Launch the TUI explicitly
//   loom chat         Interactive chat REPL without the TUI
//   loom threads      List saved threads and branches
//   loom export       Export a thread to Markdown
//   loom version      Print version information
//   loom help         Print usage

package cli

import (
	"fmt"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// =============================================================================
// COMMANDS AND ARGUMENTS
// =============================================================================

// Command identifies the top-level subcommand.
type Command int

const (
	CommandTUI Command = iota
	CommandChat
	CommandThreads
	CommandExport
	CommandVersion
	CommandHelp
)

// Args holds parsed command-line options.
type Args struct {
	Model    string // --model override
	Config   string // --config path override
	Demo     bool   // --demo: scripted backend, no network
	Quiet    bool   // --quiet
	ThreadID string // export: thread to export
	Output   string // export: output path
}

// Parse interprets os.Args and returns the selected command.
func Parse() (Command, Args) {
	raw := os.Args[1:]

	cmd := CommandTUI
	rest := raw
	if len(raw) > 0 {
		switch raw[0] {
		case "tui":
			cmd, rest = CommandTUI, raw[1:]
		case "chat":
			cmd, rest = CommandChat, raw[1:]
		case "threads", "sessions":
			cmd, rest = CommandThreads, raw[1:]
		case "export":
			cmd, rest = CommandExport, raw[1:]
		case "version", "-v", "--version":
			return CommandVersion, Args{}
		case "help", "-h", "--help":
			return CommandHelp, Args{}
		}
	}

	var args Args
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-m", "--model":
			if i+1 < len(rest) {
				i++
				args.Model = rest[i]
			}
		case "-c", "--config":
			if i+1 < len(rest) {
				i++
				args.Config = rest[i]
			}
		case "-o", "--output":
			if i+1 < len(rest) {
				i++
				args.Output = rest[i]
			}
		case "--demo":
			args.Demo = true
		case "-q", "--quiet":
			args.Quiet = true
		default:
			// First bare argument to export names the thread.
			if cmd == CommandExport && args.ThreadID == "" {
				args.ThreadID = rest[i]
			}
		}
	}

	return cmd, args
}

// =============================================================================
// USAGE
// =============================================================================

// PrintUsage writes command help to stdout.
func PrintUsage() {
	fmt.Print(`loom - branching chat for the terminal

Usage:
  loom [command] [flags]

Commands:
  tui         Launch the TUI (default)
  chat        Interactive chat REPL
  threads     List saved threads and branches
  export ID   Export a thread to Markdown
  version     Print version
  help        Print this help

Flags:
  -m, --model NAME    Model override for this session
  -c, --config PATH   Config file path
  -o, --output PATH   Output path (export)
  --demo              Use the built-in scripted backend
  -q, --quiet         Minimal output
`)
}

// PrintVersion writes the version line to stdout.
func PrintVersion() {
	fmt.Printf("loom %s\n", Version)
}
