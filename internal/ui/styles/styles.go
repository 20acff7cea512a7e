// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the loom TUI.
// Colors use Lip Gloss AdaptiveColor so light and dark terminals both
// get readable output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// PALETTE
// =============================================================================

// Violet - primary accent, assistant messages, selections
var Violet = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}

// Teal - brand color, user messages, commands
var Teal = lipgloss.AdaptiveColor{Light: "#0D9488", Dark: "#2DD4BF"}

// Green - success states, completed turns
var Green = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Red - errors, rejected attachments
var Red = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// Amber - warnings, token budget pressure
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Surface - main background tint for panels
var Surface = lipgloss.AdaptiveColor{Light: "#F8FAFC", Dark: "#1E1E2E"}

// Overlay - borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E2E8F0", Dark: "#313244"}

// TextPrimary - main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#CDD6F4"}

// TextSecondary - labels, metadata
var TextSecondary = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#A6ADC8"}

// TextMuted - hints, timestamps
var TextMuted = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#6C7086"}

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	ThreadItem      lipgloss.Style
	ThreadSelected  lipgloss.Style
	ThreadEmpty     lipgloss.Style
	BranchBadge     lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	PartialBody    lipgloss.Style
	AttachmentTag  lipgloss.Style

	// Input
	InputBox    lipgloss.Style
	InputHint   lipgloss.Style
	TokenCount  lipgloss.Style
	TokenDanger lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusModel  lipgloss.Style
	StatusState  lipgloss.Style
	StatusNotice lipgloss.Style
	StatusError  lipgloss.Style

	// Overlays
	HelpBox   lipgloss.Style
	HelpScope lipgloss.Style
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
}

// Mode forces a theme variant regardless of terminal detection.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// NewTheme builds the theme, detecting the terminal background unless a
// mode is forced.
func NewTheme(mode Mode) *Theme {
	isDark := termenv.HasDarkBackground()
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.SidebarTitle = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	t.ThreadItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.ThreadSelected = lipgloss.NewStyle().Foreground(Violet).Bold(true)
	t.ThreadEmpty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.BranchBadge = lipgloss.NewStyle().Foreground(Amber)

	t.UserLabel = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Violet).Bold(true)
	t.MessageBody = lipgloss.NewStyle().Foreground(TextPrimary)
	t.PartialBody = lipgloss.NewStyle().Foreground(TextSecondary)
	t.AttachmentTag = lipgloss.NewStyle().Foreground(Amber)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputHint = lipgloss.NewStyle().Foreground(TextMuted)
	t.TokenCount = lipgloss.NewStyle().Foreground(TextMuted)
	t.TokenDanger = lipgloss.NewStyle().Foreground(Red).Bold(true)

	t.StatusBar = lipgloss.NewStyle().Background(Surface).Foreground(TextSecondary)
	t.StatusModel = lipgloss.NewStyle().Foreground(Teal)
	t.StatusState = lipgloss.NewStyle().Foreground(Green)
	t.StatusNotice = lipgloss.NewStyle().Foreground(Amber)
	t.StatusError = lipgloss.NewStyle().Foreground(Red)

	t.HelpBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet).
		Padding(1, 2)
	t.HelpScope = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	t.HelpKey = lipgloss.NewStyle().Foreground(Violet).Bold(true)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextSecondary)

	return t
}
