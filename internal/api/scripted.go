// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api defines the boundary to the conversation backend.
package api

import (
	"sync"

	"github.com/jeranaias/loom-tui/internal/conversation"
)

// =============================================================================
// SCRIPTED CLIENT
// =============================================================================

// ScriptedClient is an in-process backend that reveals a scripted
// response a fixed number of characters per poll. It powers demo mode
// and the streaming controller's tests: the poll loop sees the same
// PENDING-with-growing-prefix then COMPLETE sequence a real backend
// produces, without any network.
type ScriptedClient struct {
	mu sync.Mutex

	// ChunkSize is how many characters each poll reveals (default 5).
	ChunkSize int

	// Respond builds the full response for a submitted message.
	// Defaults to a canned reply.
	Respond func(message string) string

	ongoing map[string]*scriptedTurn

	// Call log, for tests.
	creates []string
	polls   int
	aborts  []string
}

type scriptedTurn struct {
	full string
	pos  int
}

// NewScriptedClient creates a scripted backend.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		ChunkSize: 5,
		ongoing:   make(map[string]*scriptedTurn),
	}
}

// CreateConversation records the turn and arms the scripted response.
func (c *ScriptedClient) CreateConversation(message string, history []conversation.Message, threadID string, timestamp int64, model string, systemContext string, onError func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := "This is a scripted response, streamed a few characters at a time so the interface can render partial text."
	if c.Respond != nil {
		full = c.Respond(message)
	}
	c.ongoing[threadID] = &scriptedTurn{full: full}
	c.creates = append(c.creates, message)
}

// GetLatestResponse reveals the next chunk of the scripted response.
func (c *ScriptedClient) GetLatestResponse(threadID string, timestamp int64) (PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.polls++
	turn, ok := c.ongoing[threadID]
	if !ok {
		return PollResult{Status: StatusComplete, LatestResponse: ""}, nil
	}

	step := c.ChunkSize
	if step <= 0 {
		step = 5
	}
	turn.pos += step
	if turn.pos >= len(turn.full) {
		turn.pos = len(turn.full)
		delete(c.ongoing, threadID)
		return PollResult{Status: StatusComplete, LatestResponse: turn.full}, nil
	}
	return PollResult{Status: StatusPending, LatestResponse: turn.full[:turn.pos]}, nil
}

// AbortConversation drops the thread's scripted turn.
func (c *ScriptedClient) AbortConversation(threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ongoing, threadID)
	c.aborts = append(c.aborts, threadID)
	return nil
}

// SendMessage returns the scripted response in one shot.
func (c *ScriptedClient) SendMessage(prompt string, history []conversation.Message) (SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := "Scripted reply to: " + prompt
	if c.Respond != nil {
		full = c.Respond(prompt)
	}
	return SendResult{LatestResponse: full}, nil
}

// =============================================================================
// TEST INTROSPECTION
// =============================================================================

// Creates returns the messages submitted via CreateConversation.
func (c *ScriptedClient) Creates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.creates))
	copy(out, c.creates)
	return out
}

// Polls returns how many GetLatestResponse calls were made.
func (c *ScriptedClient) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// Aborts returns the thread ids passed to AbortConversation.
func (c *ScriptedClient) Aborts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.aborts))
	copy(out, c.aborts)
	return out
}
