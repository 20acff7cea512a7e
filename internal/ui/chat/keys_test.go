// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "testing"

func TestChordFromKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ctrl+n", "ctrl+n"},
		{"alt+]", "alt+]"},
		{"ctrl+shift+P", "ctrl+shift+p"},
		// bubbletea reports modifiers in its own order; normalization
		// fixes it to ctrl, alt, shift, cmd.
		{"shift+ctrl+a", "ctrl+shift+a"},
		{"super+k", "cmd+k"},
		{"f1", "f1"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := chordFromKey(tt.in); got != tt.want {
			t.Errorf("chordFromKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
