// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the loom TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/hotkeys"
	"github.com/jeranaias/loom-tui/internal/models"
	"github.com/jeranaias/loom-tui/internal/storage"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/ui/components"
	"github.com/jeranaias/loom-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// streamEventMsg wraps a controller event for the bubbletea loop.
type streamEventMsg struct {
	event stream.Event
}

// noticeExpiredMsg clears a transient status notice.
type noticeExpiredMsg struct {
	seq int
}

// ConfigReloadedMsg carries a freshly reloaded configuration, sent by
// the config file watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// INPUT MODES
// =============================================================================

// inputMode says what the text input currently captures.
type inputMode int

const (
	modeCompose inputMode = iota // normal message entry
	modeAttach                   // entering a file path to attach
	modeEdit                     // editing the selected message
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat view.
type Model struct {
	store      *conversation.Store
	controller *stream.Controller
	shortcuts  *hotkeys.Service
	cfg        *config.Config
	theme      *styles.Theme
	keys       KeyMap

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	md       *components.MarkdownRenderer

	width  int
	height int
	ready  bool

	mode       inputMode
	editIndex  int
	msgCursor  int // selected message index; -1 = none
	showHelp   bool
	showBranch bool

	notice    string
	noticeSeq int
	errText   string

	// save persists the durable state; called after each mutation.
	save func() error

	quitting bool
}

// New creates the chat model and registers the application shortcuts.
func New(store *conversation.Store, controller *stream.Controller, svc *hotkeys.Service, cfg *config.Config, persist *storage.Store) *Model {
	theme := styles.NewTheme(styles.Mode(cfg.UI.Theme))

	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 0
	input.SetHeight(3)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(styles.Violet)

	m := &Model{
		store:      store,
		controller: controller,
		shortcuts:  svc,
		cfg:        cfg,
		theme:      theme,
		keys:       DefaultKeyMap(),
		input:      input,
		spin:       spin,
		md:         components.NewMarkdownRenderer(80, theme.IsDark),
		msgCursor:  -1,
		editIndex:  -1,
	}
	m.save = func() error {
		if persist == nil {
			return nil
		}
		return persist.Save(storage.State{
			Threads:         store.Threads(),
			CurrentThreadID: store.CurrentThreadID(),
		})
	}

	m.registerShortcuts()
	return m
}

// registerShortcuts installs the named application shortcuts. The
// callbacks only record intent; the actual work happens in Update so
// every mutation flows through one place.
func (m *Model) registerShortcuts() {
	// Callbacks fire synchronously from Update via Service.Handle, so
	// mutating the model through the pointer receiver here is safe.
	m.shortcuts.Register("new-thread", hotkeys.Shortcut{
		Key:         "ctrl+n",
		Description: "Create new thread",
		Scope:       "Global",
		Callback:    func() { m.actionNewThread() },
	})
	m.shortcuts.Register("next-thread", hotkeys.Shortcut{
		Key:         "alt+]",
		Description: "Next thread",
		Scope:       "Global",
		Callback:    func() { m.store.NextThread(); m.resetForThread() },
	})
	m.shortcuts.Register("previous-thread", hotkeys.Shortcut{
		Key:         "alt+[",
		Description: "Previous thread",
		Scope:       "Global",
		Callback:    func() { m.store.PrevThread(); m.resetForThread() },
	})
	m.shortcuts.Register("delete-thread", hotkeys.Shortcut{
		Key:         "ctrl+x",
		Description: "Delete current thread",
		Scope:       "Global",
		Callback:    func() { m.actionDeleteThread() },
	})
	m.shortcuts.Register("new-branch", hotkeys.Shortcut{
		Key:         "ctrl+b",
		Description: "Branch from selected message",
		Scope:       "Chat",
		Callback:    func() { m.actionBranch() },
	})
	m.shortcuts.Register("switch-branch", hotkeys.Shortcut{
		Key:         "ctrl+v",
		Description: "Open branch selector",
		Scope:       "Chat",
		Callback:    func() { m.showBranch = !m.showBranch },
	})
	m.shortcuts.Register("cycle-model", hotkeys.Shortcut{
		Key:         "ctrl+o",
		Description: "Cycle model for this branch",
		Scope:       "Chat",
		Callback:    func() { m.actionCycleModel() },
	})
	m.shortcuts.Register("attach-file", hotkeys.Shortcut{
		Key:         "ctrl+a",
		Description: "Attach a file",
		Scope:       "Chat",
		Callback:    func() { m.enterAttachMode() },
	})
	m.shortcuts.Register("edit-message", hotkeys.Shortcut{
		Key:         "ctrl+e",
		Description: "Edit selected message",
		Scope:       "Chat",
		Callback:    func() { m.enterEditMode() },
	})
	m.shortcuts.Register("restart-message", hotkeys.Shortcut{
		Key:         "ctrl+r",
		Description: "Restart from selected message",
		Scope:       "Chat",
		Callback:    func() { m.actionRestart() },
	})
	m.shortcuts.Register("export-thread", hotkeys.Shortcut{
		Key:         "ctrl+s",
		Description: "Export thread to Markdown",
		Scope:       "Global",
		Callback:    func() { m.actionExport() },
	})
	m.shortcuts.Register("toggle-help", hotkeys.Shortcut{
		Key:         "f1",
		Description: "Toggle shortcuts help",
		Scope:       "Global",
		Callback:    func() { m.showHelp = !m.showHelp },
	})
}

// Init starts the spinner and the stream event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForStreamEvent())
}

// waitForStreamEvent forwards the next controller event into the
// bubbletea loop. Re-issued after each event so the pump never stops.
func (m *Model) waitForStreamEvent() tea.Cmd {
	events := m.controller.Events()
	return func() tea.Msg {
		return streamEventMsg{event: <-events}
	}
}

// =============================================================================
// SHORTCUT ACTIONS
// =============================================================================

func (m *Model) actionNewThread() {
	m.store.CreateThread()
	m.resetForThread()
	m.persist()
}

func (m *Model) actionDeleteThread() {
	err := m.store.DeleteThread(m.store.CurrentThreadID())
	if err != nil {
		m.setNotice("Cannot delete the last thread")
		return
	}
	m.resetForThread()
	m.persist()
}

// actionBranch forks a new branch containing the history up to and
// including the selected message (or the whole history when nothing is
// selected).
func (m *Model) actionBranch() {
	thread := m.store.CurrentThread()
	branch := thread.CurrentBranch()
	if len(branch.Messages) == 0 {
		m.setNotice("Nothing to branch from")
		return
	}

	messages := branch.Messages
	if m.msgCursor >= 0 && m.msgCursor < len(messages) {
		messages = messages[:m.msgCursor+1]
	}

	if _, err := m.store.CreateBranch(thread.ID, messages, branch.Attachments); err != nil {
		m.setNotice("Branch failed: " + err.Error())
		return
	}
	m.msgCursor = -1
	m.setNotice("Created " + m.store.CurrentBranch().Name)
	m.persist()
}

func (m *Model) actionCycleModel() {
	thread := m.store.CurrentThread()
	branch := thread.CurrentBranch()
	current := branch.Model
	if current == "" {
		current = m.cfg.DefaultModel
	}
	next := models.Next(current)
	m.store.SetBranchModel(thread.ID, branch.ID, next)
	m.setNotice("Model: " + models.DisplayName(next))
	m.persist()
}

func (m *Model) actionRestart() {
	if m.msgCursor < 0 {
		m.setNotice("Select a message first (M-Up/M-Down)")
		return
	}
	thread := m.store.CurrentThread()
	if err := m.controller.RestartFrom(thread.ID, m.msgCursor); err != nil {
		m.setNotice(err.Error())
		return
	}
	m.msgCursor = -1
	m.persist()
}

func (m *Model) actionExport() {
	thread := m.store.CurrentThread()
	branch := thread.CurrentBranch()
	path := "loom-export-" + time.Now().Format("20060102-150405") + ".md"
	if err := storage.WriteMarkdown(path, thread, *branch); err != nil {
		m.setNotice("Export failed: " + err.Error())
		return
	}
	m.setNotice("Exported to " + path)
}

func (m *Model) enterAttachMode() {
	m.mode = modeAttach
	m.input.Reset()
	m.input.Placeholder = "Path of file to attach..."
}

func (m *Model) enterEditMode() {
	if m.msgCursor < 0 {
		m.setNotice("Select a message first (M-Up/M-Down)")
		return
	}
	branch := m.store.CurrentBranch()
	if m.msgCursor >= len(branch.Messages) {
		return
	}
	msg := branch.Messages[m.msgCursor]
	if msg.Sender != conversation.RoleHuman {
		m.setNotice("Only your own messages can be edited")
		return
	}
	m.mode = modeEdit
	m.editIndex = m.msgCursor
	m.input.SetValue(msg.Text)
	m.input.Placeholder = "Edit message..."
}

// =============================================================================
// HELPERS
// =============================================================================

// resetForThread clears per-thread view state after a switch.
func (m *Model) resetForThread() {
	m.msgCursor = -1
	m.showBranch = false
	m.mode = modeCompose
	m.editIndex = -1
	m.input.Reset()
	m.input.Placeholder = "Type a message..."
	m.refreshViewport(true)
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeSeq++
}

func (m *Model) persist() {
	if err := m.save(); err != nil {
		m.errText = "save failed: " + err.Error()
	}
}

// pendingTokens sums the token budget already consumed by the current
// branch's pending attachments.
func (m *Model) pendingTokens() int {
	return attach.TotalTokens(m.store.CurrentBranch().Attachments)
}
