// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/ui/styles"
)

// noticeLifetime is how long a transient status notice stays visible.
const noticeLifetime = 4 * time.Second

// =============================================================================
// UPDATE
// =============================================================================

// Update handles bubbletea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refreshViewport(true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamEventMsg:
		cmd := m.handleStreamEvent(msg.event)
		return m, tea.Batch(cmd, m.waitForStreamEvent())

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.theme = styles.NewTheme(styles.Mode(msg.Config.UI.Theme))
		m.setNotice("Configuration reloaded")
		m.refreshViewport(false)
		return m, m.expireNotice()

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleStreamEvent folds a controller event into the view.
func (m *Model) handleStreamEvent(ev stream.Event) tea.Cmd {
	switch ev.Kind {
	case stream.EventPartial:
		if ev.ThreadID == m.store.CurrentThreadID() {
			m.refreshViewport(true)
		}
	case stream.EventComplete:
		m.persist()
		if ev.ThreadID == m.store.CurrentThreadID() {
			m.refreshViewport(true)
		}
	case stream.EventAborted:
		m.setNotice("Response aborted")
		m.refreshViewport(false)
		return m.expireNotice()
	case stream.EventSubmitError:
		m.setNotice("Send failed: " + ev.Err.Error())
		return m.expireNotice()
	case stream.EventPollError:
		m.setNotice("Stream failed: " + ev.Err.Error())
		m.refreshViewport(false)
		return m.expireNotice()
	}
	return nil
}

// handleKey routes a key press. Overlay state and input mode take
// priority; everything left falls through to the shortcut service.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		m.persist()
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key dismisses the help overlay.
		m.showHelp = false
		return m, nil
	}

	if m.showBranch {
		return m.handleBranchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.handleCancel()

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.SelectUp):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.SelectDn):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if fired := m.shortcuts.Handle(chordFromKey(msg.String())); fired {
		m.refreshViewport(false)
		return m, m.expireNotice()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleBranchKey drives the branch selector overlay. Branches are
// selected by their numeric id.
func (m *Model) handleBranchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := msg.String()
	if s == "esc" {
		m.showBranch = false
		return m, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return m, nil
	}
	thread := m.store.CurrentThread()
	if err := m.store.SwitchBranch(thread.ID, id); err != nil {
		m.setNotice("No branch " + s)
		return m, m.expireNotice()
	}
	m.showBranch = false
	m.msgCursor = -1
	m.refreshViewport(true)
	m.persist()
	return m, nil
}

// handleCancel aborts an in-flight turn, or backs out of the current
// input mode.
func (m *Model) handleCancel() (tea.Model, tea.Cmd) {
	if m.mode != modeCompose {
		m.mode = modeCompose
		m.editIndex = -1
		m.input.Reset()
		m.input.Placeholder = "Type a message..."
		return m, nil
	}
	if m.msgCursor >= 0 {
		m.msgCursor = -1
		m.refreshViewport(false)
		return m, nil
	}
	threadID := m.store.CurrentThreadID()
	if m.controller.StateOf(threadID) != stream.StateIdle {
		if err := m.controller.Abort(threadID); err != nil {
			m.setNotice(err.Error())
		}
		return m, m.expireNotice()
	}
	return m, nil
}

// handleSubmit commits the input buffer according to the current mode.
func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimRight(m.input.Value(), "\n")
	switch m.mode {
	case modeAttach:
		return m.submitAttachment(text)
	case modeEdit:
		return m.submitEdit(text)
	default:
		return m.submitMessage(text)
	}
}

func (m *Model) submitMessage(text string) (tea.Model, tea.Cmd) {
	hasAttachments := len(m.store.CurrentBranch().Attachments) > 0
	if strings.TrimSpace(text) == "" && !hasAttachments {
		return m, nil
	}
	threadID := m.store.CurrentThreadID()
	if err := m.controller.SendMessage(threadID, text); err != nil {
		m.setNotice(err.Error())
		return m, m.expireNotice()
	}
	m.input.Reset()
	m.msgCursor = -1
	m.refreshViewport(true)
	m.persist()
	return m, nil
}

func (m *Model) submitEdit(text string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	threadID := m.store.CurrentThreadID()
	index := m.editIndex
	m.mode = modeCompose
	m.editIndex = -1
	m.msgCursor = -1
	m.input.Reset()
	m.input.Placeholder = "Type a message..."
	if err := m.controller.EditMessage(threadID, index, text); err != nil {
		m.setNotice(err.Error())
		return m, m.expireNotice()
	}
	m.refreshViewport(true)
	m.persist()
	return m, nil
}

// submitAttachment reads and validates the file at the entered path,
// then stages it on the current branch.
func (m *Model) submitAttachment(path string) (tea.Model, tea.Cmd) {
	m.mode = modeCompose
	m.input.Reset()
	m.input.Placeholder = "Type a message..."

	path = strings.TrimSpace(path)
	if path == "" {
		return m, nil
	}

	file, err := attach.ReadFile(path)
	if err != nil {
		m.setNotice("Attach failed: " + err.Error())
		return m, m.expireNotice()
	}
	if _, err := attach.Validate(file.Name, file.Content, m.pendingTokens()); err != nil {
		m.setNotice("Attach failed: " + err.Error())
		return m, m.expireNotice()
	}

	thread := m.store.CurrentThread()
	branch := thread.CurrentBranch()
	if err := m.store.AddAttachments(thread.ID, branch.ID, []attach.Attachment{file}); err != nil {
		m.setNotice("Attach failed: " + err.Error())
		return m, m.expireNotice()
	}
	m.setNotice("Attached " + file.Name)
	m.persist()
	return m, m.expireNotice()
}

// moveCursor adjusts the selected-message index, clamped to the branch.
func (m *Model) moveCursor(delta int) {
	branch := m.store.CurrentBranch()
	n := len(branch.Messages)
	if n == 0 {
		return
	}
	if m.msgCursor < 0 {
		// First selection lands on the newest message.
		m.msgCursor = n - 1
	} else {
		m.msgCursor += delta
		if m.msgCursor < 0 {
			m.msgCursor = 0
		}
		if m.msgCursor >= n {
			m.msgCursor = n - 1
		}
	}
	m.refreshViewport(false)
}

// expireNotice schedules the current notice to clear.
func (m *Model) expireNotice() tea.Cmd {
	seq := m.noticeSeq
	return tea.Tick(noticeLifetime, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// =============================================================================
// LAYOUT
// =============================================================================

// sidebarWidth is the fixed width of the thread list column.
const sidebarWidth = 28

// layout resizes the viewport, input and renderer to the terminal.
func (m *Model) layout() {
	contentWidth := m.width - sidebarWidth - 4
	if contentWidth < 20 {
		contentWidth = 20
	}
	inputHeight := 5
	statusHeight := 1
	vpHeight := m.height - inputHeight - statusHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}

	m.viewport.Width = contentWidth
	m.viewport.Height = vpHeight
	m.input.SetWidth(contentWidth)
	m.md.SetWidth(contentWidth - 2)
}

// refreshViewport re-renders the transcript. When follow is true the
// view snaps to the bottom, tracking a streaming response.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// roleLabel returns the styled speaker label for a message.
func (m *Model) roleLabel(role conversation.Role) string {
	if role == conversation.RoleHuman {
		return m.theme.UserLabel.Render("You")
	}
	return m.theme.AssistantLabel.Render("Assistant")
}
