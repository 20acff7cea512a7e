// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api defines the boundary to the conversation backend and its
// HTTP implementation.
//
// The backend contract is request/poll/abort: a turn is submitted with
// CreateConversation (fire-and-forget), its response is then obtained
// by repeated GetLatestResponse polls keyed by (threadID, timestamp),
// and AbortConversation is a best-effort cancellation. SendMessage is a
// separate synchronous single-turn call used by the edit path.
package api

import "github.com/jeranaias/loom-tui/internal/conversation"

// =============================================================================
// POLL STATUS
// =============================================================================

// Status reports whether a polled response is final.
type Status string

const (
	// StatusPending means the response is still streaming; the returned
	// text is a growing prefix of the final text.
	StatusPending Status = "PENDING"

	// StatusComplete means the returned text is the final response.
	StatusComplete Status = "COMPLETE"
)

// =============================================================================
// RESULTS
// =============================================================================

// PollResult is the outcome of one GetLatestResponse call.
type PollResult struct {
	Status         Status `json:"status"`
	LatestResponse string `json:"latestResponse"`
}

// SendResult is the outcome of a synchronous SendMessage call.
type SendResult struct {
	LatestResponse string `json:"latestResponse,omitempty"`
}

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Client is the conversation backend boundary.
//
// Implementations must be safe for concurrent use: independent threads
// may have turns in flight at the same time.
type Client interface {
	// CreateConversation submits a new turn. It is fire-and-forget: the
	// call returns without waiting for the backend, and any submission
	// failure is delivered to onError. The turn's response becomes
	// obtainable via GetLatestResponse keyed by (threadID, timestamp).
	CreateConversation(message string, history []conversation.Message, threadID string, timestamp int64, model string, systemContext string, onError func(error))

	// GetLatestResponse polls for the turn's response. Idempotent.
	GetLatestResponse(threadID string, timestamp int64) (PollResult, error)

	// AbortConversation cancels the thread's in-flight turn.
	// Best-effort; a CreateConversation already in flight may still land.
	AbortConversation(threadID string) error

	// SendMessage is a synchronous single-turn call.
	SendMessage(prompt string, history []conversation.Message) (SendResult, error)
}

// wireMessage is the history entry shape sent to the backend. Historic
// attachment content is inlined as tagged text, matching exactly what
// the backend saw when the message was first submitted.
type wireMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// toWire reformats history for the backend, inlining attachments.
func toWire(history []conversation.Message) []wireMessage {
	out := make([]wireMessage, len(history))
	for i, m := range history {
		out[i] = wireMessage{
			Sender: m.Sender.String(),
			Text:   m.FormattedText(),
		}
	}
	return out
}
