// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "testing"

func TestDisplayName(t *testing.T) {
	if got := DisplayName(ClaudeV35Haiku); got != "Claude 3.5 Haiku" {
		t.Errorf("DisplayName = %q", got)
	}
	// Unknown ids fall back to the raw identifier.
	if got := DisplayName("custom-model"); got != "custom-model" {
		t.Errorf("DisplayName fallback = %q", got)
	}
}

func TestKnown(t *testing.T) {
	if !Known(Default()) {
		t.Error("default model must be known")
	}
	if Known("nope") {
		t.Error("unknown id reported as known")
	}
}

func TestNextCycles(t *testing.T) {
	seen := map[string]bool{}
	id := Default()
	for range List() {
		id = Next(id)
		if seen[id] {
			t.Fatalf("Next revisited %q before completing the cycle", id)
		}
		seen[id] = true
	}
	if id != Default() {
		t.Errorf("full cycle ended at %q, want %q", id, Default())
	}

	if got := Next("unknown"); got != List()[0] {
		t.Errorf("Next(unknown) = %q, want first model", got)
	}
}
