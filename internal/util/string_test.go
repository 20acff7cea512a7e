// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "testing"

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is longer than ten", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"anything", 0, ""},
		{"héllo wörld évérywhere", 10, "héllo w..."},
		{"日本語のテキストです", 5, "日本..."},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.s, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	if got := TruncateRunesNoEllipsis("abcdef", 4); got != "abcd" {
		t.Errorf("got %q", got)
	}
	if got := TruncateRunesNoEllipsis("日本語テキスト", 3); got != "日本語" {
		t.Errorf("got %q", got)
	}
	if got := TruncateRunesNoEllipsis("ok", 10); got != "ok" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateWidthCountsCells(t *testing.T) {
	// CJK characters are two cells wide.
	if got := StringWidth("日本"); got != 4 {
		t.Fatalf("StringWidth = %d, want 4", got)
	}
	got := TruncateWidth("日本語のテキスト", 8)
	if StringWidth(got) > 8 {
		t.Errorf("TruncateWidth result %q is %d cells wide", got, StringWidth(got))
	}
	if got := TruncateWidth("plain", 10); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := len(PadRight("日本", 6)); StringWidth(PadRight("日本", 6)) != 6 {
		t.Errorf("PadRight width = %d (len %d)", StringWidth(PadRight("日本", 6)), got)
	}
}

func TestRuneLen(t *testing.T) {
	if got := RuneLen("héllo"); got != 5 {
		t.Errorf("RuneLen = %d, want 5", got)
	}
}
