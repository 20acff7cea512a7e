// loom - branching chat for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/api"
	"github.com/jeranaias/loom-tui/internal/cli"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/hotkeys"
	"github.com/jeranaias/loom-tui/internal/storage"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/ui/chat"
)

// Version information (set at build time).
var Version = "0.2.0"

func init() {
	cli.Version = Version
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CommandVersion:
		cli.PrintVersion()
	case cli.CommandHelp:
		cli.PrintUsage()
	default:
		if err := run(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// run wires the application together and dispatches the command.
func run(cmd cli.Command, args cli.Args) error {
	cfg, cfgPath, err := loadConfig(args)
	if err != nil {
		return err
	}

	// Route log output to a file: stderr writes would tear the
	// alternate screen while the TUI is up.
	if f := openLogFile(); f != nil {
		defer f.Close()
		log.SetOutput(f)
	}

	statePath := cfg.StoragePath
	if statePath == "" {
		statePath, err = storage.DefaultPath()
		if err != nil {
			return err
		}
	}
	persist, err := storage.Open(statePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer persist.Close()

	saved, err := persist.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	store := conversation.FromSnapshot(saved.Threads, saved.CurrentThreadID)

	controller := stream.NewController(store, newClient(cfg), stream.Config{
		SubmitDelay:  cfg.SubmitDelay(),
		PollInterval: cfg.PollInterval(),
	})

	switch cmd {
	case cli.CommandChat:
		repl := cli.NewRepl(store, controller, cfg, persist, args.Quiet)
		return repl.Run()

	case cli.CommandThreads:
		cli.ListThreads(store)
		return nil

	case cli.CommandExport:
		if args.ThreadID == "" {
			return fmt.Errorf("usage: loom export <thread>")
		}
		return cli.ExportThread(store, args.ThreadID, args.Output)

	default:
		return runTUI(cfg, cfgPath, store, controller, persist)
	}
}

// loadConfig resolves the config path, loads it, and applies CLI
// overrides.
func loadConfig(args cli.Args) (*config.Config, string, error) {
	path := args.Config
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	// First run: write the defaults so there is a file to edit, and so
	// the live-reload watcher has something to watch.
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if saveErr := config.Default().Save(path); saveErr != nil {
			log.Printf("config: could not write %s: %v", path, saveErr)
		}
	}
	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}
	if args.Demo {
		cfg.API.Demo = true
	}
	return cfg, path, nil
}

// openLogFile opens loom.log in the config directory. A nil return
// leaves logging on stderr, which is fine for the non-TUI commands.
func openLogFile() *os.File {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "loom.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil
	}
	return f
}

// newClient picks the backend: the scripted demo client, or HTTP.
func newClient(cfg *config.Config) api.Client {
	if cfg.API.Demo {
		return api.NewScriptedClient()
	}
	return api.NewHTTPClient(&api.ClientConfig{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.RequestTimeout(),
		PollRatePerSec: cfg.API.PollRatePerSec,
	})
}

func runTUI(cfg *config.Config, cfgPath string, store *conversation.Store, controller *stream.Controller, persist *storage.Store) error {
	if !cli.IsTTY() {
		return fmt.Errorf("the TUI needs a terminal; try 'loom chat' or 'loom threads'")
	}

	shortcuts := hotkeys.NewService()
	model := chat.New(store, controller, shortcuts, cfg, persist)

	program := tea.NewProgram(model, tea.WithAltScreen())

	// Apply config file edits without a restart.
	watcher, err := config.NewWatcher(cfgPath, func(updated *config.Config) {
		program.Send(chat.ConfigReloadedMsg{Config: updated})
	})
	if err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	_, err = program.Run()
	return err
}
