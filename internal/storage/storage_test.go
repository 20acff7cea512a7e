// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/conversation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleState() State {
	return State{
		Threads: []conversation.Thread{
			{
				ID:   "t1",
				Name: "First",
				Branches: []conversation.Branch{
					{
						ID:   1,
						Name: "Main",
						Messages: []conversation.Message{
							{Sender: conversation.RoleHuman, Text: "hello"},
							{
								Sender: conversation.RoleAssistant,
								Text:   "hi",
							},
						},
						CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
					},
					{
						ID:        2,
						Name:      "Branch 2",
						Messages:  []conversation.Message{},
						CreatedAt: time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC),
						Model:     "us.anthropic.claude-3-5-haiku-20241022-v1:0",
					},
				},
				CurrentBranchID: 2,
				NextBranchID:    3,
			},
			{
				ID:              "t2",
				Name:            "Second",
				Branches:        []conversation.Branch{{ID: 1, Name: "Main"}},
				CurrentBranchID: 1,
				NextBranchID:    2,
			},
		},
		CurrentThreadID: "t2",
	}
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleState()

	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, "t2", got.CurrentThreadID)
	require.Len(t, got.Threads, 2)

	thread := got.Threads[0]
	assert.Equal(t, 2, thread.CurrentBranchID)
	assert.Equal(t, 3, thread.NextBranchID)
	require.Len(t, thread.Branches, 2)
	assert.Equal(t, "hello", thread.Branches[0].Messages[0].Text)
	assert.Equal(t, "us.anthropic.claude-3-5-haiku-20241022-v1:0", thread.Branches[1].Model)
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(sampleState()))

	updated := sampleState()
	updated.Threads = updated.Threads[:1]
	updated.CurrentThreadID = "t1"
	require.NoError(t, s.Save(updated))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Threads, 1)
	assert.Equal(t, "t1", got.CurrentThreadID)
}

func TestLoadEmptyDatabase(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got.Threads, "fresh database should yield zero state")
	assert.Empty(t, got.CurrentThreadID)
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleState()))
	s.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load()
	require.NoError(t, err)
	assert.Len(t, got.Threads, 2)
}

func TestSchemaVersionGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.set(keySchemaVersion, strconv.Itoa(SchemaVersion+1)))
	s.Close()

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.db")
	s, err := Open(path)
	require.NoError(t, err, "Open should create parent directories")
	s.Close()
}

// =============================================================================
// MARKDOWN EXPORT
// =============================================================================

func TestExportMarkdown(t *testing.T) {
	thread := conversation.Thread{Name: "Trip planning"}
	branch := conversation.Branch{
		Name:        "Branch 2",
		Description: `Branched from message: "what about trains..."`,
		CreatedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Messages: []conversation.Message{
			{Sender: conversation.RoleHuman, Text: "what about trains",
				Attachments: []attach.Attachment{{Name: "schedule.csv", Content: "a,b"}}},
			{Sender: conversation.RoleAssistant, Text: "Trains are a fine option."},
		},
	}

	got := ExportMarkdown(thread, branch)

	for _, want := range []string{
		"# Trip planning\n",
		"Branch: Branch 2",
		"**User**:",
		"**Assistant**:",
		"> attached: `schedule.csv`",
		"Trains are a fine option.",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "a,b", "export should list attachment names, not content")
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.md")
	thread := conversation.Thread{Name: "T"}
	branch := conversation.Branch{Name: "Main"}

	require.NoError(t, WriteMarkdown(path, thread, branch))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 4 && string(data[:4]) == "# T\n", "export starts with title line")
}
