// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the canonical thread/branch/message model
// for loom and exposes atomic mutation operations over it.
//
// A Thread is a top-level conversation. Each thread holds one or more
// Branches: linear message histories forked from a point in another
// branch. Branch ids are integers unique within their thread and are
// never reused. Exactly one branch per thread is current, and exactly
// one thread is current in the store.
package conversation

import (
	"time"

	"github.com/jeranaias/loom-tui/internal/attach"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies who authored a message.
type Role string

const (
	// RoleHuman marks a user-authored message.
	RoleHuman Role = "Human"

	// RoleAssistant marks a model-authored message.
	RoleAssistant Role = "Assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one entry in a branch's history. Messages are append-only
// except for the edit and restart operations, which truncate the tail
// before appending new content.
type Message struct {
	// Sender is who authored the message.
	Sender Role `json:"sender"`

	// Text is the literal message text.
	Text string `json:"text"`

	// Attachments holds the files that were attached when the message
	// was composed. Nil for messages composed without attachments and
	// for all assistant messages.
	Attachments []attach.Attachment `json:"attachments,omitempty"`
}

// FormattedText returns the message text as the backend sees it: the
// text unchanged when the message carries no attachments, otherwise
// prefixed by the inline-tagged attachment blocks.
func (m Message) FormattedText() string {
	if len(m.Attachments) == 0 {
		return m.Text
	}
	return attach.FormatAttachments(m.Attachments) + m.Text
}

// =============================================================================
// BRANCH
// =============================================================================

// Branch is a linear message history within a thread.
type Branch struct {
	// ID is unique within the owning thread, monotonically increasing.
	ID int `json:"id"`

	// Name defaults to "Main" for the first branch, "Branch {id}" after.
	Name string `json:"name"`

	// Messages is the ordered history.
	Messages []Message `json:"messages"`

	// Attachments are the files pending for the branch's next message.
	// They are session state, but they live on the branch so switching
	// branches keeps each branch's pending set intact.
	Attachments []attach.Attachment `json:"attachments,omitempty"`

	// CreatedAt is when the branch was created.
	CreatedAt time.Time `json:"created_at"`

	// Description explains where the branch forked from.
	Description string `json:"description,omitempty"`

	// Model is the backend model identifier for the branch's next turn.
	// Empty means the configured default.
	Model string `json:"model,omitempty"`
}

// LastMessage returns the final message and true, or a zero Message and
// false for an empty branch.
func (b *Branch) LastMessage() (Message, bool) {
	if len(b.Messages) == 0 {
		return Message{}, false
	}
	return b.Messages[len(b.Messages)-1], true
}

// =============================================================================
// THREAD
// =============================================================================

// Thread is a top-level conversation.
type Thread struct {
	// ID is an opaque identifier, generated at creation, never reused.
	ID string `json:"id"`

	// Name is the display name. Auto-derived from the first user
	// message unless renamed explicitly.
	Name string `json:"name"`

	// Branches in insertion order. Never empty.
	Branches []Branch `json:"branches"`

	// CurrentBranchID points at the active branch.
	CurrentBranchID int `json:"current_branch_id"`

	// NextBranchID is the id the next created branch receives. Kept as
	// a stored counter rather than recomputed from max(ids) so ids stay
	// monotonic even if branch sets are ever mutated concurrently.
	NextBranchID int `json:"next_branch_id"`
}

// Branch returns a pointer to the branch with the given id, or nil.
func (t *Thread) Branch(id int) *Branch {
	for i := range t.Branches {
		if t.Branches[i].ID == id {
			return &t.Branches[i]
		}
	}
	return nil
}

// CurrentBranch returns the active branch. Falls back to the first
// branch if CurrentBranchID does not resolve, so a thread loaded from a
// corrupted state file still renders.
func (t *Thread) CurrentBranch() *Branch {
	if b := t.Branch(t.CurrentBranchID); b != nil {
		return b
	}
	return &t.Branches[0]
}

// IsEmpty reports whether the thread's first branch has no messages.
func (t *Thread) IsEmpty() bool {
	return len(t.Branches) > 0 && len(t.Branches[0].Messages) == 0
}
