// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives conversation turns against the backend.
//
// A turn runs submission -> delayed first poll -> poll loop -> final
// append, with user-triggered abort at any point. At most one turn per
// thread is in flight; turns on different threads are independent.
//
// Every scheduled poll carries the generation current at the time it
// was armed. Abort and new submissions bump the generation, so a poll
// response that lands late cannot resurrect a cancelled or superseded
// session.
package stream

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/loom-tui/internal/api"
	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/conversation"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTurnInFlight is returned when a send arrives while the
	// thread's previous turn is still running. Turns are serialized per
	// thread; callers surface this as a notice, not a crash.
	ErrTurnInFlight = errors.New("a turn is already in flight for this thread")
)

// =============================================================================
// STATES
// =============================================================================

// State is the per-thread turn state.
type State int

const (
	// StateIdle means no request is outstanding.
	StateIdle State = iota

	// StateSubmitting means the turn was submitted and the first poll
	// has not fired yet.
	StateSubmitting

	// StatePolling means the poll loop is running.
	StatePolling
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "Submitting"
	case StatePolling:
		return "Polling"
	default:
		return "Idle"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind classifies controller events.
type EventKind int

const (
	// EventPartial carries a non-final streamed prefix.
	EventPartial EventKind = iota

	// EventComplete marks the turn finished; the final message has been
	// appended to the branch.
	EventComplete

	// EventAborted marks a user-triggered abort.
	EventAborted

	// EventSubmitError carries a failure from the fire-and-forget
	// submission. The turn stays in its submitted state; the user
	// retries via restart.
	EventSubmitError

	// EventPollError carries a poll failure. The loop has stopped.
	EventPollError
)

// Event is published on the controller's event channel.
type Event struct {
	Kind     EventKind
	ThreadID string

	// Text is the partial prefix (EventPartial) or final text
	// (EventComplete).
	Text string

	// Err is set for the error kinds.
	Err error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds controller timing.
type Config struct {
	// SubmitDelay is the gap between submission and the first poll
	// (default: 1s).
	SubmitDelay time.Duration

	// PollInterval is the gap between a poll resolving and the next
	// poll being issued (default: 100ms). Polls are never pipelined.
	PollInterval time.Duration
}

// DefaultConfig returns the default controller timing.
func DefaultConfig() Config {
	return Config{
		SubmitDelay:  time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates turns between the conversation store and the
// backend client. Safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	client   api.Client
	store    *conversation.Store
	config   Config
	sessions map[string]*session
	events   chan Event
}

// session is the per-thread turn state.
type session struct {
	state      State
	generation uint64
	timer      *time.Timer
	partial    string
	branchID   int
	timestamp  int64
}

// NewController creates a controller over a store and backend client.
func NewController(store *conversation.Store, client api.Client, config Config) *Controller {
	if config.SubmitDelay <= 0 {
		config.SubmitDelay = time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &Controller{
		client:   client,
		store:    store,
		config:   config,
		sessions: make(map[string]*session),
		events:   make(chan Event, 64),
	}
}

// Events returns the channel controller events are published on.
// Partials are published immediately, never batched.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// publish delivers an event without ever blocking a timer goroutine.
// If the consumer has fallen 64 events behind, the oldest is dropped;
// partials are prefixes of each other so dropping one loses nothing.
func (c *Controller) publish(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
			select {
			case <-c.events:
			default:
			}
		}
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// StateOf returns the thread's turn state.
func (c *Controller) StateOf(threadID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[threadID]; ok {
		return s.state
	}
	return StateIdle
}

// IsPolling reports whether the thread has a turn in flight.
func (c *Controller) IsPolling(threadID string) bool {
	return c.StateOf(threadID) != StateIdle
}

// Partial returns the thread's buffered partial response text.
func (c *Controller) Partial(threadID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[threadID]; ok {
		return s.partial
	}
	return ""
}

// =============================================================================
// NEW MESSAGE
// =============================================================================

// SendMessage submits a new turn on the thread's current branch.
//
// The human message (with the branch's pending attachments) is appended
// to the branch, the attachments are serialized into the outgoing text
// as inline tagged blocks, the turn is submitted fire-and-forget, and
// the first poll is scheduled after SubmitDelay.
func (c *Controller) SendMessage(threadID, input string) error {
	thread, err := c.store.Thread(threadID)
	if err != nil {
		return err
	}
	branch := thread.CurrentBranch()

	c.mu.Lock()
	s := c.ensureSessionLocked(threadID)
	if s.state != StateIdle {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	s.generation++
	gen := s.generation
	s.state = StateSubmitting
	s.partial = ""
	s.branchID = branch.ID
	s.timestamp = time.Now().UnixMilli()
	timestamp := s.timestamp
	c.mu.Unlock()

	pending := branch.Attachments
	userMsg := conversation.Message{
		Sender:      conversation.RoleHuman,
		Text:        input,
		Attachments: pending,
	}

	// The backend sees pending attachments inlined ahead of the text.
	outgoing := input
	if len(pending) > 0 {
		outgoing = attach.FormatAttachments(pending) + input
	}

	history := branch.Messages

	c.client.CreateConversation(outgoing, history, threadID, timestamp, branch.Model, "", func(err error) {
		log.Printf("stream: submit failed for thread %s: %v", threadID, err)
		c.publish(Event{Kind: EventSubmitError, ThreadID: threadID, Err: err})
	})

	if err := c.store.AppendMessage(threadID, branch.ID, userMsg); err != nil {
		return err
	}
	c.store.ClearAttachments(threadID, branch.ID)

	c.armTimer(threadID, gen, c.config.SubmitDelay, timestamp)
	return nil
}

// =============================================================================
// EDIT MESSAGE
// =============================================================================

// EditMessage replaces the message at index and discards everything
// after it, then requests a single synchronous reply.
//
// Edits deliberately bypass the poll loop: the edited turn resolves in
// one SendMessage call rather than re-entering streaming. The history
// sent to the backend is the pre-truncation history with attachment
// content inlined, matching what the backend originally saw.
func (c *Controller) EditMessage(threadID string, index int, input string) error {
	thread, err := c.store.Thread(threadID)
	if err != nil {
		return err
	}
	branch := thread.CurrentBranch()
	if index < 0 || index >= len(branch.Messages) {
		return errors.New("edit index out of range")
	}

	c.mu.Lock()
	s := c.ensureSessionLocked(threadID)
	if s.state != StateIdle {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	s.generation++
	c.mu.Unlock()

	// The edited message keeps the original's attachments.
	edited := branch.Messages[index]
	edited.Text = input

	history := branch.Messages

	truncated := append(append([]conversation.Message{}, branch.Messages[:index]...), edited)
	if err := c.store.SetMessages(threadID, branch.ID, truncated); err != nil {
		return err
	}
	c.store.ClearAttachments(threadID, branch.ID)

	result, err := c.client.SendMessage(edited.FormattedText(), history)
	if err != nil {
		c.publish(Event{Kind: EventPollError, ThreadID: threadID, Err: err})
		return err
	}

	reply := conversation.Message{
		Sender: conversation.RoleAssistant,
		Text:   result.LatestResponse,
	}
	if err := c.store.AppendMessage(threadID, branch.ID, reply); err != nil {
		return err
	}
	c.publish(Event{Kind: EventComplete, ThreadID: threadID, Text: reply.Text})
	return nil
}

// =============================================================================
// RESTART
// =============================================================================

// RestartFrom truncates the branch to index+1 messages. If the retained
// tail message is human-authored, the turn is resubmitted and polling
// resumes immediately; an assistant tail makes restart a pure
// truncation with no regeneration.
func (c *Controller) RestartFrom(threadID string, index int) error {
	thread, err := c.store.Thread(threadID)
	if err != nil {
		return err
	}
	branch := thread.CurrentBranch()
	if index < 0 || index >= len(branch.Messages) {
		return errors.New("restart index out of range")
	}

	c.mu.Lock()
	s := c.ensureSessionLocked(threadID)
	if s.state != StateIdle {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	s.generation++
	gen := s.generation
	c.mu.Unlock()

	kept := append([]conversation.Message{}, branch.Messages[:index+1]...)
	if err := c.store.SetMessages(threadID, branch.ID, kept); err != nil {
		return err
	}

	last := kept[len(kept)-1]
	if last.Sender != conversation.RoleHuman {
		return nil
	}

	c.mu.Lock()
	s.state = StateSubmitting
	s.partial = ""
	s.branchID = branch.ID
	s.timestamp = time.Now().UnixMilli()
	timestamp := s.timestamp
	c.mu.Unlock()

	c.client.CreateConversation(last.Text, kept, threadID, timestamp, branch.Model, "", func(err error) {
		log.Printf("stream: restart submit failed for thread %s: %v", threadID, err)
		c.publish(Event{Kind: EventSubmitError, ThreadID: threadID, Err: err})
	})

	// Restart resumes polling without the initial submit delay.
	c.armTimer(threadID, gen, c.config.PollInterval, timestamp)
	return nil
}

// =============================================================================
// ABORT
// =============================================================================

// Abort cancels the thread's in-flight turn: the pending timer is
// stopped, the generation bumped so any in-flight poll response is
// dropped, the backend notified best-effort, and the partial buffer
// cleared. Committed messages are untouched.
func (c *Controller) Abort(threadID string) error {
	c.mu.Lock()
	s, ok := c.sessions[threadID]
	if !ok || s.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.state = StateIdle
	s.partial = ""
	c.mu.Unlock()

	err := c.client.AbortConversation(threadID)
	c.publish(Event{Kind: EventAborted, ThreadID: threadID})
	return err
}

// =============================================================================
// POLL LOOP
// =============================================================================

// armTimer schedules the next poll. Any previously pending timer is
// stopped first; at most one timer exists per thread.
func (c *Controller) armTimer(threadID string, gen uint64, delay time.Duration, timestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[threadID]
	if !ok || s.generation != gen {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, func() {
		c.pollOnce(threadID, gen, timestamp)
	})
}

// pollOnce performs one poll tick. The next tick is armed only after
// this call resolves, so polls are never pipelined.
func (c *Controller) pollOnce(threadID string, gen uint64, timestamp int64) {
	c.mu.Lock()
	s, ok := c.sessions[threadID]
	if !ok || s.generation != gen {
		c.mu.Unlock()
		return
	}
	s.state = StatePolling
	branchID := s.branchID
	c.mu.Unlock()

	result, err := c.client.GetLatestResponse(threadID, timestamp)

	c.mu.Lock()
	if s.generation != gen {
		// Aborted or superseded while the poll was in flight.
		c.mu.Unlock()
		return
	}

	if err != nil {
		// A poll failure is fatal to the loop: stop and surface it.
		s.state = StateIdle
		s.partial = ""
		s.timer = nil
		c.mu.Unlock()
		c.publish(Event{Kind: EventPollError, ThreadID: threadID, Err: err})
		return
	}

	if result.LatestResponse != "" {
		s.partial = result.LatestResponse
	}
	c.mu.Unlock()

	if result.LatestResponse != "" {
		c.publish(Event{Kind: EventPartial, ThreadID: threadID, Text: result.LatestResponse})
	}

	if result.Status == api.StatusPending {
		c.armTimer(threadID, gen, c.config.PollInterval, timestamp)
		return
	}

	// COMPLETE: commit the final assistant message.
	final := conversation.Message{
		Sender: conversation.RoleAssistant,
		Text:   result.LatestResponse,
	}
	if err := c.store.AppendMessage(threadID, branchID, final); err != nil {
		log.Printf("stream: append final message failed for thread %s: %v", threadID, err)
	}

	c.mu.Lock()
	if s.generation == gen {
		s.state = StateIdle
		s.partial = ""
		s.timer = nil
	}
	c.mu.Unlock()

	c.publish(Event{Kind: EventComplete, ThreadID: threadID, Text: final.Text})
}

// ensureSessionLocked returns the thread's session, creating it if
// needed. Caller holds c.mu.
func (c *Controller) ensureSessionLocked(threadID string) *session {
	s, ok := c.sessions[threadID]
	if !ok {
		s = &session{}
		c.sessions[threadID] = s
	}
	return s
}
