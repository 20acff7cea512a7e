// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides shared UI components for the loom TUI.
package components

import (
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// MarkdownRenderer renders assistant messages as terminal markdown.
// Construction is relatively expensive, so one renderer is shared and
// rebuilt only on resize.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	isDark   bool
}

// NewMarkdownRenderer creates a renderer for the given wrap width.
func NewMarkdownRenderer(width int, isDark bool) *MarkdownRenderer {
	m := &MarkdownRenderer{width: width, isDark: isDark}
	m.rebuild()
	return m
}

// SetWidth updates the wrap width, rebuilding the renderer if needed.
func (m *MarkdownRenderer) SetWidth(width int) {
	if width == m.width {
		return
	}
	m.width = width
	m.rebuild()
}

func (m *MarkdownRenderer) rebuild() {
	styleOpt := glamour.WithStandardStyle("light")
	if m.isDark {
		styleOpt = glamour.WithStandardStyle("dark")
	}
	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(m.width),
		glamour.WithEmoji(),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// Render converts markdown to styled terminal output. On failure the
// raw text is returned, so a rendering problem never hides a message.
func (m *MarkdownRenderer) Render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}
