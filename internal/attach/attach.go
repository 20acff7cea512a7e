// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach provides file attachment handling for loom.
//
// Attachments are plain-text files inlined into the outgoing prompt as
// tagged blocks. The package enforces the attachment budget (file size,
// per-file token count, and aggregate token count across the pending
// set) and knows which file types may be attached at all.
package attach

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// LIMITS
// =============================================================================

const (
	// MaxFileSize is the maximum attachment size in bytes (pre-decode).
	MaxFileSize = 5 * 1024 * 1024

	// MaxTokensPerFile is the token budget for a single attachment.
	MaxTokensPerFile = 160000

	// MaxTokensTotal is the aggregate token budget across all
	// attachments pending for a single message.
	MaxTokensTotal = 160000
)

// allowedExtensions lists the file-name extensions that may be attached.
var allowedExtensions = map[string]bool{
	// Documentation and text
	".txt": true, ".md": true, ".markdown": true, ".rst": true, ".log": true,
	// Data files
	".json": true, ".csv": true, ".tsv": true, ".xml": true, ".yaml": true, ".yml": true,
	// Config files
	".toml": true, ".ini": true, ".conf": true, ".cfg": true,
	// Web
	".html": true, ".css": true, ".scss": true, ".sass": true,
	// JavaScript / TypeScript
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
	// Backend languages
	".py": true, ".rb": true, ".php": true, ".java": true, ".go": true,
	// Shell scripts
	".sh": true, ".bash": true, ".zsh": true, ".ps1": true,
}

// allowedBareNames lists extension-less file names that may be attached.
var allowedBareNames = map[string]bool{
	"makefile":           true,
	"dockerfile":         true,
	"docker-compose.yml": true,
	"jenkinsfile":        true,
	"license":            true,
	"readme":             true,
	"changelog":          true,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnsupportedFile indicates the file type is not on the allow-list.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileTooLarge indicates the file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileTokenBudget indicates a single file exceeds MaxTokensPerFile.
	ErrFileTokenBudget = errors.New("file exceeds token limit")

	// ErrTotalTokenBudget indicates attaching the file would push the
	// pending set past MaxTokensTotal.
	ErrTotalTokenBudget = errors.New("attachments exceed total token limit")

	// ErrTokenCount indicates the token counter itself failed.
	// Counting failure rejects the attachment outright: silently
	// under-counting would defeat the budget.
	ErrTokenCount = errors.New("token count unavailable")

	// ErrBinaryFile indicates the file content is not valid text.
	ErrBinaryFile = errors.New("file is not valid text")
)

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a named text blob pending inclusion in a message.
type Attachment struct {
	// Name is the original file name (base name, not path).
	Name string `json:"name"`

	// Content is the decoded file text.
	Content string `json:"content"`
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatAttachments renders a list of attachments as inline tagged
// blocks, preserving list order. Each attachment becomes exactly:
//
//	<file name="NAME">
//	CONTENT
//	</file>
//
// followed by a blank line.
func FormatAttachments(attachments []Attachment) string {
	var sb strings.Builder
	for _, a := range attachments {
		sb.WriteString(`<file name="`)
		sb.WriteString(a.Name)
		sb.WriteString("\">\n")
		sb.WriteString(a.Content)
		sb.WriteString("\n</file>\n\n")
	}
	return sb.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// Allowed reports whether the file name may be attached, based on its
// extension or its bare name (Makefile, Dockerfile, README, ...).
func Allowed(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	if allowedBareNames[base] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return false
	}
	return allowedExtensions[ext]
}

// Validate checks a candidate attachment against the allow-list and the
// attachment budget. currentTotal is the summed token count of the
// attachments already pending for the message. On success it returns
// the file's token count so callers can maintain the running total.
func Validate(name, content string, currentTotal int) (int, error) {
	if !Allowed(name) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
	if len(content) > MaxFileSize {
		return 0, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, name, len(content), MaxFileSize)
	}

	tokens, err := countTokens(content)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrTokenCount, name, err)
	}
	if tokens > MaxTokensPerFile {
		return 0, fmt.Errorf("%w: %s has %d tokens (limit %d)", ErrFileTokenBudget, name, tokens, MaxTokensPerFile)
	}
	if currentTotal+tokens > MaxTokensTotal {
		return 0, fmt.Errorf("%w: %d + %d tokens (limit %d)", ErrTotalTokenBudget, currentTotal, tokens, MaxTokensTotal)
	}
	return tokens, nil
}

// ReadFile loads a file from disk as an attachment candidate.
// The content must be valid UTF-8; binary files are rejected.
func ReadFile(path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if info.Size() > MaxFileSize {
		return Attachment{}, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}
	if !utf8.Valid(data) {
		return Attachment{}, fmt.Errorf("%w: %s", ErrBinaryFile, path)
	}

	return Attachment{
		Name:    filepath.Base(path),
		Content: string(data),
	}, nil
}

// TotalTokens sums the token counts of the given attachments.
// Attachments that fail to count contribute 0.
func TotalTokens(attachments []Attachment) int {
	total := 0
	for _, a := range attachments {
		total += TokenCount(a.Content)
	}
	return total
}
