// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for the loom CLI.
//
// Drives the same conversation store and streaming controller as the
// TUI, but over a plain readline loop. Useful over slow links and in
// scripts where a full-screen interface is unwanted.
//
// Interactive commands:
//   /help, /h            Show available commands
//   /threads             List threads
//   /switch <n>          Switch to thread n (1-based)
//   /new                 Create a new thread
//   /branch [index]      Branch from message index (default: last)
//   /branches            List branches of the current thread
//   /use <id>            Switch to branch id
//   /model [name]        Show or set the branch model
//   /attach <path>       Stage a file attachment
//   /edit <n> <text>     Edit message n and resend
//   /restart <n>         Drop everything after message n and resend
//   /rename <name>       Rename the current thread
//   /search <query>      Search messages across all threads
//   /export [path]       Export the current thread to Markdown
//   /history             Print the current branch
//   /quit, /q            Exit
//   Ctrl+C               Abort the current response

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/models"
	"github.com/jeranaias/loom-tui/internal/storage"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/ui/styles"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Violet).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(styles.Teal).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	warnStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// replInput wraps liner with persistent input history.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &replInput{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *replInput) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *replInput) close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// Repl is the interactive chat loop.
type Repl struct {
	store      *conversation.Store
	controller *stream.Controller
	cfg        *config.Config
	persist    *storage.Store
	input      *replInput
	quiet      bool
}

// NewRepl builds the REPL around an existing store and controller.
func NewRepl(store *conversation.Store, controller *stream.Controller, cfg *config.Config, persist *storage.Store, quiet bool) *Repl {
	// Plain output when piped or NO_COLOR is set.
	lipgloss.SetColorProfile(ColorProfile())
	return &Repl{
		store:      store,
		controller: controller,
		cfg:        cfg,
		persist:    persist,
		input:      newReplInput(),
		quiet:      quiet,
	}
}

// Run executes the REPL until /quit or EOF.
func (r *Repl) Run() error {
	defer r.input.close()
	defer r.save()

	if !r.quiet {
		fmt.Println(infoStyle.Render("loom chat - /help for commands, Ctrl+D to exit"))
	}

	for {
		input, err := r.input.read(promptStyle.Render("you> "))
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			// EOF (Ctrl+D) ends the session.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if done := r.handleCommand(input); done {
				return nil
			}
			continue
		}

		r.sendAndWait(input)
	}
}

// sendAndWait submits a message and streams the reply to stdout,
// returning when the turn completes, aborts, or fails. Ctrl+C during
// the wait aborts the turn.
func (r *Repl) sendAndWait(text string) {
	threadID := r.store.CurrentThreadID()
	if err := r.controller.SendMessage(threadID, text); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}

	fmt.Print(assistantStyle.Render("assistant> "))

	printed := 0
	for ev := range r.controller.Events() {
		if ev.ThreadID != threadID {
			continue
		}
		switch ev.Kind {
		case stream.EventPartial:
			// Print only the suffix beyond what is already shown.
			if len(ev.Text) > printed {
				fmt.Print(ev.Text[printed:])
				printed = len(ev.Text)
			}
		case stream.EventComplete:
			if len(ev.Text) > printed {
				fmt.Print(ev.Text[printed:])
			}
			fmt.Println()
			r.save()
			return
		case stream.EventAborted:
			fmt.Println()
			fmt.Println(warnStyle.Render("(aborted)"))
			return
		case stream.EventSubmitError, stream.EventPollError:
			fmt.Println()
			fmt.Println(warnStyle.Render("error: " + ev.Err.Error()))
			return
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand runs one slash command. Returns true to exit the REPL.
func (r *Repl) handleCommand(input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		r.printHelp()

	case "/threads":
		r.printThreads()

	case "/new":
		r.store.CreateThread()
		r.save()
		fmt.Println(infoStyle.Render("created thread"))

	case "/switch":
		r.cmdSwitch(args)

	case "/branch":
		r.cmdBranch(args)

	case "/branches":
		r.printBranches()

	case "/use":
		r.cmdUse(args)

	case "/model":
		r.cmdModel(args)

	case "/attach":
		r.cmdAttach(args)

	case "/edit":
		r.cmdEdit(args)

	case "/restart":
		r.cmdRestart(args)

	case "/rename":
		r.cmdRename(args)

	case "/search":
		r.cmdSearch(args)

	case "/export":
		r.cmdExport(args)

	case "/history":
		r.printHistory()

	default:
		fmt.Println(warnStyle.Render("unknown command " + cmd + " (/help for commands)"))
	}
	return false
}

func (r *Repl) cmdSwitch(args []string) {
	if len(args) != 1 {
		fmt.Println(warnStyle.Render("usage: /switch <n>"))
		return
	}
	n, err := strconv.Atoi(args[0])
	threads := r.store.Threads()
	if err != nil || n < 1 || n > len(threads) {
		fmt.Println(warnStyle.Render("no thread " + args[0]))
		return
	}
	if err := r.store.SwitchThread(threads[n-1].ID); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render("switched to " + threads[n-1].Name))
}

func (r *Repl) cmdBranch(args []string) {
	thread := r.store.CurrentThread()
	branch := thread.CurrentBranch()
	if len(branch.Messages) == 0 {
		fmt.Println(warnStyle.Render("nothing to branch from"))
		return
	}
	messages := branch.Messages
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(messages) {
			fmt.Println(warnStyle.Render("no message " + args[0]))
			return
		}
		messages = messages[:n]
	}
	id, err := r.store.CreateBranch(thread.ID, messages, branch.Attachments)
	if err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render(fmt.Sprintf("created branch %d", id)))
}

func (r *Repl) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Println(warnStyle.Render("usage: /use <branch-id>"))
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println(warnStyle.Render("branch ids are numeric"))
		return
	}
	if err := r.store.SwitchBranch(r.store.CurrentThreadID(), id); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render("switched branch"))
}

func (r *Repl) cmdModel(args []string) {
	thread := r.store.CurrentThread()
	branch := thread.CurrentBranch()
	if len(args) == 0 {
		current := branch.Model
		if current == "" {
			current = r.cfg.DefaultModel
		}
		fmt.Println(infoStyle.Render("model: " + models.DisplayName(current)))
		return
	}
	id := args[0]
	if !models.Known(id) {
		fmt.Println(warnStyle.Render("unknown model " + id))
		fmt.Println(infoStyle.Render("available: " + strings.Join(models.List(), ", ")))
		return
	}
	if err := r.store.SetBranchModel(thread.ID, branch.ID, id); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render("model set to " + models.DisplayName(id)))
}

func (r *Repl) cmdAttach(args []string) {
	if len(args) != 1 {
		fmt.Println(warnStyle.Render("usage: /attach <path>"))
		return
	}
	file, err := attach.ReadFile(args[0])
	if err != nil {
		fmt.Println(warnStyle.Render("attach failed: " + err.Error()))
		return
	}
	thread := r.store.CurrentThread()
	branch := thread.CurrentBranch()
	total := attach.TotalTokens(branch.Attachments)
	tokens, err := attach.Validate(file.Name, file.Content, total)
	if err != nil {
		fmt.Println(warnStyle.Render("attach failed: " + err.Error()))
		return
	}
	if err := r.store.AddAttachments(thread.ID, branch.ID, []attach.Attachment{file}); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render(fmt.Sprintf("attached %s (%d tokens)", file.Name, tokens)))
}

func (r *Repl) cmdEdit(args []string) {
	if len(args) < 2 {
		fmt.Println(warnStyle.Render("usage: /edit <n> <text>"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Println(warnStyle.Render("no message " + args[0]))
		return
	}
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(strings.Join(args, " "), args[0]), " "))
	threadID := r.store.CurrentThreadID()
	if err := r.controller.EditMessage(threadID, n-1, text); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	// EditMessage is synchronous; print the reply directly.
	branch := r.store.CurrentBranch()
	if last, ok := branch.LastMessage(); ok && last.Sender == conversation.RoleAssistant {
		fmt.Println(assistantStyle.Render("assistant> ") + last.Text)
	}
}

func (r *Repl) cmdRestart(args []string) {
	if len(args) != 1 {
		fmt.Println(warnStyle.Render("usage: /restart <n>"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Println(warnStyle.Render("no message " + args[0]))
		return
	}
	threadID := r.store.CurrentThreadID()
	if err := r.controller.RestartFrom(threadID, n-1); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	// When the retained tail was a human message a new turn is now in
	// flight; stream it like a normal send.
	if r.controller.StateOf(threadID) != stream.StateIdle {
		fmt.Print(assistantStyle.Render("assistant> "))
		r.streamCurrent(threadID)
	}
}

// streamCurrent drains events for an already-started turn.
func (r *Repl) streamCurrent(threadID string) {
	printed := 0
	for ev := range r.controller.Events() {
		if ev.ThreadID != threadID {
			continue
		}
		switch ev.Kind {
		case stream.EventPartial:
			if len(ev.Text) > printed {
				fmt.Print(ev.Text[printed:])
				printed = len(ev.Text)
			}
		case stream.EventComplete:
			if len(ev.Text) > printed {
				fmt.Print(ev.Text[printed:])
			}
			fmt.Println()
			r.save()
			return
		case stream.EventAborted, stream.EventSubmitError, stream.EventPollError:
			fmt.Println()
			return
		}
	}
}

func (r *Repl) cmdRename(args []string) {
	if len(args) == 0 {
		fmt.Println(warnStyle.Render("usage: /rename <name>"))
		return
	}
	name := strings.Join(args, " ")
	if err := r.store.RenameThread(r.store.CurrentThreadID(), name); err != nil {
		fmt.Println(warnStyle.Render(err.Error()))
		return
	}
	r.save()
	fmt.Println(infoStyle.Render("renamed thread to " + name))
}

func (r *Repl) cmdSearch(args []string) {
	if len(args) == 0 {
		fmt.Println(warnStyle.Render("usage: /search <query>"))
		return
	}
	hits := r.store.SearchMessages(strings.Join(args, " "))
	if len(hits) == 0 {
		fmt.Println(infoStyle.Render("no matches"))
		return
	}
	width := TerminalWidth()
	for _, h := range hits {
		loc := fmt.Sprintf("%s [branch %d, msg %d]: ",
			util.TruncateRunes(h.ThreadName, 24), h.BranchID, h.Index+1)
		fmt.Println(infoStyle.Render(loc) + util.TruncateWidth(h.Preview, width-util.RuneLen(loc)))
	}
}

func (r *Repl) cmdExport(args []string) {
	thread := r.store.CurrentThread()
	branch := thread.CurrentBranch()
	path := "loom-export-" + time.Now().Format("20060102-150405") + ".md"
	if len(args) == 1 {
		path = args[0]
	}
	if err := storage.WriteMarkdown(path, thread, *branch); err != nil {
		fmt.Println(warnStyle.Render("export failed: " + err.Error()))
		return
	}
	fmt.Println(infoStyle.Render("exported to " + path))
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *Repl) printHelp() {
	fmt.Print(infoStyle.Render(`/help            show this help
/threads         list threads
/switch <n>      switch to thread n
/new             create a new thread
/branch [n]      branch from message n (default: whole history)
/branches        list branches
/use <id>        switch branch
/model [name]    show or set the model
/attach <path>   stage a file attachment
/edit <n> <text> edit message n and resend
/restart <n>     drop everything after message n
/rename <name>   rename the current thread
/search <query>  search messages across threads
/export [path]   export thread to Markdown
/history         print the current branch
/quit            exit
`))
}

func (r *Repl) printThreads() {
	current := r.store.CurrentThreadID()
	for i, t := range r.store.Threads() {
		marker := "  "
		if t.ID == current {
			marker = "* "
		}
		fmt.Printf("%s%d. %s (%d branch(es))\n", marker, i+1, t.Name, len(t.Branches))
	}
}

func (r *Repl) printBranches() {
	thread := r.store.CurrentThread()
	for _, br := range thread.Branches {
		marker := "  "
		if br.ID == thread.CurrentBranchID {
			marker = "* "
		}
		fmt.Printf("%s[%d] %s - %s\n", marker, br.ID, br.Name, br.Description)
	}
}

func (r *Repl) printHistory() {
	branch := r.store.CurrentBranch()
	for i, msg := range branch.Messages {
		label := "you"
		if msg.Sender == conversation.RoleAssistant {
			label = "assistant"
		}
		fmt.Printf("%d. [%s] %s\n", i+1, label, msg.Text)
		for _, a := range msg.Attachments {
			fmt.Printf("     + %s\n", a.Name)
		}
	}
}

func (r *Repl) save() {
	if r.persist == nil {
		return
	}
	err := r.persist.Save(storage.State{
		Threads:         r.store.Threads(),
		CurrentThreadID: r.store.CurrentThreadID(),
	})
	if err != nil && !r.quiet {
		fmt.Println(warnStyle.Render("save failed: " + err.Error()))
	}
}
