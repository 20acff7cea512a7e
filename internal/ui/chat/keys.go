// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the loom TUI.
//
// This file defines keyboard bindings. Chords observed from bubbletea
// are normalized and dispatched through the hotkeys service, so the
// shortcuts-help overlay and the actual handling always agree.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/loom-tui/internal/hotkeys"
)

// =============================================================================
// KEY MAP
// =============================================================================

// KeyMap defines the bindings handled directly by the chat model
// (navigation and text entry), as opposed to the named application
// shortcuts registered in the hotkeys service.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Submit   key.Binding
	Newline  key.Binding
	SelectUp key.Binding
	SelectDn key.Binding
	Cancel   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default chat bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("Up", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("Down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send message"),
		),
		Newline: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("C-j", "insert newline"),
		),
		SelectUp: key.NewBinding(
			key.WithKeys("alt+up"),
			key.WithHelp("M-Up", "select previous message"),
		),
		SelectDn: key.NewBinding(
			key.WithKeys("alt+down"),
			key.WithHelp("M-Down", "select next message"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "abort / close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// =============================================================================
// CHORD NORMALIZATION
// =============================================================================

// chordFromKey converts a bubbletea key string ("ctrl+n", "alt+]",
// "ctrl+shift+p", "E") into the service's canonical chord form.
func chordFromKey(keyStr string) string {
	parts := strings.Split(keyStr, "+")
	var ctrl, alt, shift, cmd bool
	nonMod := ""
	for _, p := range parts {
		switch strings.ToLower(p) {
		case "ctrl":
			ctrl = true
		case "alt":
			alt = true
		case "shift":
			shift = true
		case "cmd", "super", "meta":
			cmd = true
		default:
			nonMod = p
		}
	}
	return hotkeys.Normalize(ctrl, alt, shift, cmd, nonMod)
}
