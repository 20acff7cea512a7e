// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useWordCounter swaps in a whitespace-based token counter for the
// duration of a test, so budget tests are deterministic and offline.
func useWordCounter(t *testing.T) {
	t.Helper()
	orig := countTokens
	countTokens = func(text string) (int, error) {
		return len(strings.Fields(text)), nil
	}
	t.Cleanup(func() { countTokens = orig })
}

func useFailingCounter(t *testing.T) {
	t.Helper()
	orig := countTokens
	countTokens = func(text string) (int, error) {
		return 0, errors.New("encoder unavailable")
	}
	t.Cleanup(func() { countTokens = orig })
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatAttachmentsExact(t *testing.T) {
	got := FormatAttachments([]Attachment{
		{Name: "a.txt", Content: "hello"},
	})
	want := "<file name=\"a.txt\">\nhello\n</file>\n\n"
	if got != want {
		t.Errorf("FormatAttachments = %q, want %q", got, want)
	}
}

func TestFormatAttachmentsPreservesOrder(t *testing.T) {
	got := FormatAttachments([]Attachment{
		{Name: "one.md", Content: "1"},
		{Name: "two.md", Content: "2"},
	})
	want := "<file name=\"one.md\">\n1\n</file>\n\n" +
		"<file name=\"two.md\">\n2\n</file>\n\n"
	if got != want {
		t.Errorf("FormatAttachments = %q, want %q", got, want)
	}
}

func TestFormatAttachmentsEmpty(t *testing.T) {
	if got := FormatAttachments(nil); got != "" {
		t.Errorf("FormatAttachments(nil) = %q, want empty", got)
	}
}

// Content is inlined verbatim, even when it contains the closing tag.
func TestFormatAttachmentsNoEscaping(t *testing.T) {
	got := FormatAttachments([]Attachment{
		{Name: "x.html", Content: "</file> <b>raw</b>"},
	})
	want := "<file name=\"x.html\">\n</file> <b>raw</b>\n</file>\n\n"
	if got != want {
		t.Errorf("FormatAttachments = %q, want %q", got, want)
	}
}

// =============================================================================
// ALLOW-LIST
// =============================================================================

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"main.go", true},
		{"notes.txt", true},
		{"README.md", true},
		{"styles.SCSS", true}, // extension matching is case-insensitive
		{"script.ps1", true},
		{"Makefile", true},
		{"DOCKERFILE", true},
		{"docker-compose.yml", true},
		{"Jenkinsfile", true},
		{"LICENSE", true},
		{"photo.png", false},
		{"archive.tar.gz", false},
		{"binary", false},
		{"program.exe", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.name); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAllowedUsesBaseName(t *testing.T) {
	if !Allowed("/some/deep/path/Makefile") {
		t.Error("Allowed should match the base name of a path")
	}
	if Allowed("/some/deep/path.go/binary") {
		t.Error("Allowed should not match directory extensions")
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateRejectsUnsupported(t *testing.T) {
	useWordCounter(t)
	_, err := Validate("photo.png", "data", 0)
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Validate error = %v, want ErrUnsupportedFile", err)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	useWordCounter(t)
	big := strings.Repeat("a", MaxFileSize+1)
	_, err := Validate("big.txt", big, 0)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Validate error = %v, want ErrFileTooLarge", err)
	}
}

func TestValidateSizeLimitIsInclusive(t *testing.T) {
	useWordCounter(t)
	exact := strings.Repeat("a", MaxFileSize)
	if _, err := Validate("exact.txt", exact, 0); err != nil {
		t.Errorf("Validate at exactly MaxFileSize: %v", err)
	}
}

func TestValidatePerFileTokenBudget(t *testing.T) {
	useWordCounter(t)
	over := strings.Repeat("w ", MaxTokensPerFile+1)
	_, err := Validate("over.txt", over, 0)
	if !errors.Is(err, ErrFileTokenBudget) {
		t.Errorf("Validate error = %v, want ErrFileTokenBudget", err)
	}
}

func TestValidateAggregateBudget(t *testing.T) {
	useWordCounter(t)

	// Two tokens on their own are fine.
	tokens, err := Validate("small.txt", "two words", 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tokens != 2 {
		t.Fatalf("tokens = %d, want 2", tokens)
	}

	// The same file pushes a nearly full set over the line.
	_, err = Validate("small.txt", "two words", MaxTokensTotal-1)
	if !errors.Is(err, ErrTotalTokenBudget) {
		t.Errorf("Validate error = %v, want ErrTotalTokenBudget", err)
	}

	// Exactly at the limit is allowed.
	if _, err := Validate("small.txt", "two words", MaxTokensTotal-2); err != nil {
		t.Errorf("Validate at exact aggregate limit: %v", err)
	}
}

func TestValidateRejectsOnCounterFailure(t *testing.T) {
	useFailingCounter(t)
	_, err := Validate("fine.txt", "content", 0)
	if !errors.Is(err, ErrTokenCount) {
		t.Errorf("Validate error = %v, want ErrTokenCount", err)
	}
}

// =============================================================================
// READING
// =============================================================================

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("some notes\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if a.Name != "notes.txt" {
		t.Errorf("Name = %q, want notes.txt", a.Name)
	}
	if a.Content != "some notes\n" {
		t.Errorf("Content = %q", a.Content)
	}
}

func TestReadFileRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFile(path)
	if !errors.Is(err, ErrBinaryFile) {
		t.Errorf("ReadFile error = %v, want ErrBinaryFile", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Error("ReadFile on missing file should error")
	}
}
