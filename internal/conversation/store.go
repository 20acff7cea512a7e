// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the canonical thread/branch/message model.
package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrThreadNotFound is returned when a thread id does not resolve.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrBranchNotFound is returned when a branch id does not resolve
	// within its thread.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrLastThread is returned when deleting the only remaining thread.
	ErrLastThread = errors.New("cannot delete the last thread")
)

// =============================================================================
// STORE
// =============================================================================

// Store holds the thread collection and the current-thread pointer.
//
// Every operation is a complete, synchronous mutation under the lock;
// no partial update is ever observable. Accessors return snapshot
// copies, so callers never mutate store-owned memory directly.
type Store struct {
	mu              sync.Mutex
	threads         []Thread
	currentThreadID string
}

// NewStore creates a store seeded with a single empty thread, which is
// current. A store never has zero threads.
func NewStore() *Store {
	t := newThread()
	return &Store{
		threads:         []Thread{t},
		currentThreadID: t.ID,
	}
}

// FromSnapshot restores a store from persisted state. An empty snapshot
// or an unresolvable current id falls back to the NewStore defaults, so
// loading never yields an invalid store.
func FromSnapshot(threads []Thread, currentThreadID string) *Store {
	if len(threads) == 0 {
		return NewStore()
	}
	s := &Store{threads: cloneThreads(threads)}

	// Repair state written before the branch counter existed, and any
	// thread persisted with no branches at all.
	for i := range s.threads {
		t := &s.threads[i]
		if len(t.Branches) == 0 {
			t.Branches = []Branch{newMainBranch()}
			t.CurrentBranchID = 1
		}
		if t.NextBranchID <= maxBranchID(t) {
			t.NextBranchID = maxBranchID(t) + 1
		}
	}

	s.currentThreadID = currentThreadID
	if s.findThread(currentThreadID) == nil {
		s.currentThreadID = s.threads[0].ID
	}
	return s
}

func newThread() Thread {
	return Thread{
		ID:              uuid.NewString(),
		Name:            "New Chat",
		Branches:        []Branch{newMainBranch()},
		CurrentBranchID: 1,
		NextBranchID:    2,
	}
}

func newMainBranch() Branch {
	return Branch{
		ID:          1,
		Name:        "Main",
		Messages:    []Message{},
		CreatedAt:   time.Now(),
		Description: "Initial conversation branch",
	}
}

func maxBranchID(t *Thread) int {
	max := 0
	for _, b := range t.Branches {
		if b.ID > max {
			max = b.ID
		}
	}
	return max
}

// =============================================================================
// THREAD OPERATIONS
// =============================================================================

// CreateThread makes a fresh thread current and returns its id.
//
// If some thread's first branch has zero messages, that thread is
// reused instead of creating a duplicate empty one.
func (s *Store) CreateThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.threads {
		if s.threads[i].IsEmpty() {
			s.currentThreadID = s.threads[i].ID
			return s.currentThreadID
		}
	}

	t := newThread()
	s.threads = append(s.threads, t)
	s.currentThreadID = t.ID
	return t.ID
}

// DeleteThread removes a thread. Deleting the last remaining thread is
// forbidden. If the removed thread was current, the first remaining
// thread becomes current.
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.threads) <= 1 {
		return ErrLastThread
	}
	idx := -1
	for i := range s.threads {
		if s.threads[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrThreadNotFound
	}

	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)
	if s.currentThreadID == id {
		s.currentThreadID = s.threads[0].ID
	}
	return nil
}

// RenameThread sets a thread's display name.
func (s *Store) RenameThread(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findThread(id)
	if t == nil {
		return ErrThreadNotFound
	}
	t.Name = name
	return nil
}

// SwitchThread makes the given thread current. Unknown ids fail closed:
// the prior selection is kept and an error returned.
func (s *Store) SwitchThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findThread(id) == nil {
		return ErrThreadNotFound
	}
	s.currentThreadID = id
	return nil
}

// NextThread cycles the current pointer forward through the collection
// and returns the new current id.
func (s *Store) NextThread() string {
	return s.cycleThread(1)
}

// PrevThread cycles the current pointer backward through the collection
// and returns the new current id.
func (s *Store) PrevThread() string {
	return s.cycleThread(-1)
}

func (s *Store) cycleThread(step int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.threads)
	cur := 0
	for i := range s.threads {
		if s.threads[i].ID == s.currentThreadID {
			cur = i
			break
		}
	}
	s.currentThreadID = s.threads[(cur+step+n)%n].ID
	return s.currentThreadID
}

// =============================================================================
// BRANCH OPERATIONS
// =============================================================================

// CreateBranch forks a new branch in a thread with the given message
// prefix and pending attachments, makes it the thread's current branch,
// and returns the new branch id.
func (s *Store) CreateBranch(threadID string, messages []Message, attachments []attach.Attachment) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findThread(threadID)
	if t == nil {
		return 0, ErrThreadNotFound
	}

	id := t.NextBranchID
	t.NextBranchID++

	desc := ""
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		desc = `Branched from message: "` + util.TruncateRunesNoEllipsis(last.Text, 50) + `..."`
	}

	t.Branches = append(t.Branches, Branch{
		ID:          id,
		Name:        "Branch " + util.IntToString(id),
		Messages:    cloneMessages(messages),
		Attachments: cloneAttachments(attachments),
		CreatedAt:   time.Now(),
		Description: desc,
	})
	t.CurrentBranchID = id
	return id, nil
}

// SwitchBranch makes a branch current within its thread. Unknown ids
// fail closed.
func (s *Store) SwitchBranch(threadID string, branchID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findThread(threadID)
	if t == nil {
		return ErrThreadNotFound
	}
	if t.Branch(branchID) == nil {
		return ErrBranchNotFound
	}
	t.CurrentBranchID = branchID
	return nil
}

// RenameBranch sets a branch's display name.
func (s *Store) RenameBranch(threadID string, branchID int, name string) error {
	return s.withBranch(threadID, branchID, func(_ *Thread, b *Branch) {
		b.Name = name
	})
}

// SetMessages replaces a branch's message history. This is the single
// write path used by sends, edits, restarts, and completed turns.
//
// As a side effect, a thread still carrying the default name is renamed
// after its first user message.
func (s *Store) SetMessages(threadID string, branchID int, messages []Message) error {
	return s.withBranch(threadID, branchID, func(t *Thread, b *Branch) {
		b.Messages = cloneMessages(messages)
		if t.Name == "New Chat" {
			if name := deriveThreadName(b.Messages); name != "" {
				t.Name = name
			}
		}
	})
}

// AppendMessage appends one message to a branch's history.
func (s *Store) AppendMessage(threadID string, branchID int, msg Message) error {
	return s.withBranch(threadID, branchID, func(t *Thread, b *Branch) {
		b.Messages = append(b.Messages, msg)
		if t.Name == "New Chat" {
			if name := deriveThreadName(b.Messages); name != "" {
				t.Name = name
			}
		}
	})
}

// SetBranchModel sets the model identifier used for the branch's next turn.
func (s *Store) SetBranchModel(threadID string, branchID int, model string) error {
	return s.withBranch(threadID, branchID, func(_ *Thread, b *Branch) {
		b.Model = model
	})
}

// AddAttachments appends files to the branch's pending set. Duplicate
// names are not deduplicated.
func (s *Store) AddAttachments(threadID string, branchID int, files []attach.Attachment) error {
	return s.withBranch(threadID, branchID, func(_ *Thread, b *Branch) {
		b.Attachments = append(b.Attachments, files...)
	})
}

// RemoveAttachment removes every pending attachment matching the name.
func (s *Store) RemoveAttachment(threadID string, branchID int, name string) error {
	return s.withBranch(threadID, branchID, func(_ *Thread, b *Branch) {
		kept := b.Attachments[:0]
		for _, a := range b.Attachments {
			if a.Name != name {
				kept = append(kept, a)
			}
		}
		b.Attachments = kept
	})
}

// ClearAttachments empties the branch's pending set (after a send).
func (s *Store) ClearAttachments(threadID string, branchID int) error {
	return s.withBranch(threadID, branchID, func(_ *Thread, b *Branch) {
		b.Attachments = nil
	})
}

func (s *Store) withBranch(threadID string, branchID int, fn func(*Thread, *Branch)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findThread(threadID)
	if t == nil {
		return ErrThreadNotFound
	}
	b := t.Branch(branchID)
	if b == nil {
		return ErrBranchNotFound
	}
	fn(t, b)
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Threads returns a snapshot copy of the thread collection.
func (s *Store) Threads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneThreads(s.threads)
}

// CurrentThreadID returns the current thread's id.
func (s *Store) CurrentThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentThreadID
}

// CurrentThread returns a snapshot of the current thread.
func (s *Store) CurrentThread() Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findThread(s.currentThreadID)
	if t == nil {
		t = &s.threads[0]
	}
	return cloneThread(*t)
}

// CurrentBranch returns a snapshot of the current thread's active branch.
func (s *Store) CurrentBranch() Branch {
	t := s.CurrentThread()
	return *t.CurrentBranch()
}

// Thread returns a snapshot of the thread with the given id.
func (s *Store) Thread(id string) (Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findThread(id)
	if t == nil {
		return Thread{}, ErrThreadNotFound
	}
	return cloneThread(*t), nil
}

// Len returns the number of threads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

func (s *Store) findThread(id string) *Thread {
	for i := range s.threads {
		if s.threads[i].ID == id {
			return &s.threads[i]
		}
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchHit identifies a message matching a search query.
type SearchHit struct {
	ThreadID   string
	ThreadName string
	BranchID   int
	Index      int
	Preview    string
}

// SearchMessages finds messages whose text contains the query,
// case-insensitively, across all threads and branches.
func (s *Store) SearchMessages(query string) []SearchHit {
	if query == "" {
		return nil
	}
	query = strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []SearchHit
	for i := range s.threads {
		t := &s.threads[i]
		for j := range t.Branches {
			b := &t.Branches[j]
			for k, msg := range b.Messages {
				if strings.Contains(strings.ToLower(msg.Text), query) {
					hits = append(hits, SearchHit{
						ThreadID:   t.ID,
						ThreadName: t.Name,
						BranchID:   b.ID,
						Index:      k,
						Preview:    util.TruncateRunes(strings.ReplaceAll(msg.Text, "\n", " "), 80),
					})
				}
			}
		}
	}
	return hits
}

// =============================================================================
// HELPERS
// =============================================================================

// deriveThreadName builds a display name from the first user message:
// newlines stripped, truncated to 50 runes.
func deriveThreadName(messages []Message) string {
	for _, msg := range messages {
		if msg.Sender == RoleHuman && msg.Text != "" {
			name := strings.ReplaceAll(msg.Text, "\n", " ")
			name = strings.ReplaceAll(name, "\r", "")
			return util.TruncateRunes(name, 50)
		}
	}
	return ""
}

func cloneThreads(threads []Thread) []Thread {
	out := make([]Thread, len(threads))
	for i, t := range threads {
		out[i] = cloneThread(t)
	}
	return out
}

func cloneThread(t Thread) Thread {
	branches := make([]Branch, len(t.Branches))
	for i, b := range t.Branches {
		b.Messages = cloneMessages(b.Messages)
		b.Attachments = cloneAttachments(b.Attachments)
		branches[i] = b
	}
	t.Branches = branches
	return t
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

func cloneAttachments(attachments []attach.Attachment) []attach.Attachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]attach.Attachment, len(attachments))
	copy(out, attachments)
	return out
}
