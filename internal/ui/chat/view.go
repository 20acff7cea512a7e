// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/models"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/ui/components"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "  starting loom..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderInput(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		main,
	)

	if m.showBranch {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderBranchBar())
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusBar())
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Threads"))
	b.WriteString("\n\n")

	currentID := m.store.CurrentThreadID()
	for _, t := range m.store.Threads() {
		name := util.TruncateRunes(t.Name, sidebarWidth-6)
		line := name
		if len(t.Branches) > 1 {
			line += " " + m.theme.BranchBadge.Render(fmt.Sprintf("⑂%d", len(t.Branches)))
		}
		if t.ID == currentID {
			b.WriteString(m.theme.ThreadSelected.Render("> " + line))
		} else {
			b.WriteString(m.theme.ThreadItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height + 7).
		Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the current branch's messages plus any
// in-flight partial response.
func (m *Model) renderTranscript() string {
	branch := m.store.CurrentBranch()
	threadID := m.store.CurrentThreadID()

	if len(branch.Messages) == 0 && m.controller.StateOf(threadID) == stream.StateIdle {
		return m.theme.ThreadEmpty.Render("\n  No messages yet. Type below to start, F1 for shortcuts.")
	}

	var b strings.Builder
	for i, msg := range branch.Messages {
		b.WriteString(m.renderMessage(i, msg))
		b.WriteString("\n")
	}

	if m.controller.StateOf(threadID) != stream.StateIdle {
		b.WriteString(m.roleLabel(conversation.RoleAssistant))
		b.WriteString(" ")
		b.WriteString(m.spin.View())
		b.WriteString("\n")
		if partial := m.controller.Partial(threadID); partial != "" {
			b.WriteString(m.theme.PartialBody.Render(partial))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m *Model) renderMessage(index int, msg conversation.Message) string {
	var b strings.Builder

	label := m.roleLabel(msg.Sender)
	if index == m.msgCursor {
		label = m.theme.ThreadSelected.Render("▶ ") + label
	}
	b.WriteString(label)
	b.WriteString("\n")

	for _, a := range msg.Attachments {
		b.WriteString(m.theme.AttachmentTag.Render("  ⎘ " + a.Name))
		b.WriteString("\n")
	}

	body := msg.Text
	if msg.Sender == conversation.RoleAssistant {
		if m.cfg.UI.Markdown {
			body = m.md.Render(body)
		} else {
			body = m.highlightFences(body)
		}
	}
	b.WriteString(m.theme.MessageBody.Render(body))
	b.WriteString("\n")

	return b.String()
}

// highlightFences syntax-highlights fenced code blocks in plain-text
// mode. Glamour handles this itself when markdown rendering is on.
func (m *Model) highlightFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	var out strings.Builder
	var code strings.Builder
	var lang string
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inFence && strings.HasPrefix(trimmed, "```"):
			inFence = true
			lang = strings.TrimPrefix(trimmed, "```")
			code.Reset()
		case inFence && trimmed == "```":
			inFence = false
			block := components.NewCodeBlock(lang, strings.TrimSuffix(code.String(), "\n"))
			block.MaxWidth = m.viewport.Width - 4
			out.WriteString(block.Render(m.theme.IsDark))
			out.WriteString("\n")
		case inFence:
			code.WriteString(line)
			code.WriteString("\n")
		default:
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	// An unterminated fence is emitted verbatim.
	if inFence {
		out.WriteString("```" + lang + "\n")
		out.WriteString(code.String())
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m *Model) renderInput() string {
	var hint string
	switch m.mode {
	case modeAttach:
		hint = "attach: enter a file path, Esc to cancel"
	case modeEdit:
		hint = fmt.Sprintf("editing message %d, Enter to resend, Esc to cancel", m.editIndex+1)
	default:
		hint = "Enter to send, C-j newline, C-a attach, F1 help"
	}

	box := m.theme.InputBox.Render(m.input.View())
	line := m.theme.InputHint.Render(hint)

	if pending := m.store.CurrentBranch().Attachments; len(pending) > 0 {
		total := attach.TotalTokens(pending)
		style := m.theme.TokenCount
		if total > attach.MaxTokensTotal*9/10 {
			style = m.theme.TokenDanger
		}
		line += "  " + style.Render(fmt.Sprintf("%d file(s), %d/%d tokens",
			len(pending), total, attach.MaxTokensTotal))
	}

	return box + "\n" + line
}

func (m *Model) renderStatusBar() string {
	thread := m.store.CurrentThread()
	branch := thread.CurrentBranch()

	model := branch.Model
	if model == "" {
		model = m.cfg.DefaultModel
	}

	parts := []string{
		m.theme.StatusModel.Render(models.DisplayName(model)),
		m.theme.StatusState.Render(branch.Name),
	}
	if st := m.controller.StateOf(thread.ID); st != stream.StateIdle {
		parts = append(parts, m.theme.StatusState.Render(st.String()))
	}
	if m.notice != "" {
		parts = append(parts, m.theme.StatusNotice.Render(m.notice))
	}
	if m.errText != "" {
		parts = append(parts, m.theme.StatusError.Render(m.errText))
	}

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  │  "))
}

// renderBranchBar lists the branches of the current thread; a digit
// selects one.
func (m *Model) renderBranchBar() string {
	thread := m.store.CurrentThread()
	var parts []string
	for _, br := range thread.Branches {
		label := fmt.Sprintf("[%d] %s", br.ID, br.Name)
		if br.ID == thread.CurrentBranchID {
			label = m.theme.ThreadSelected.Render(label)
		} else {
			label = m.theme.ThreadItem.Render(label)
		}
		parts = append(parts, label)
	}
	return m.theme.HelpBox.Render("Branches: " + strings.Join(parts, "  ") + "  (digit to switch, Esc to close)")
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

// renderHelp renders the shortcut reference grouped by scope.
func (m *Model) renderHelp() string {
	byScope := m.shortcuts.ByScope()
	scopes := make([]string, 0, len(byScope))
	for scope := range byScope {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, scope := range scopes {
		b.WriteString(m.theme.HelpScope.Render(scope))
		b.WriteString("\n")
		for _, binding := range byScope[scope] {
			b.WriteString("  ")
			b.WriteString(m.theme.HelpKey.Render(util.PadRight(binding.Shortcut.Key, 14)))
			b.WriteString(m.theme.HelpDesc.Render(binding.Shortcut.Description))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.InputHint.Render("press any key to close"))

	return m.theme.HelpBox.Width(m.width - 4).Render(b.String())
}
