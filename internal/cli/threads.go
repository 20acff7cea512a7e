// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// threads.go - Non-interactive thread listing and export commands.

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/storage"
	"github.com/jeranaias/loom-tui/internal/util"
)

// ListThreads prints every saved thread with its branches.
func ListThreads(store *conversation.Store) {
	current := store.CurrentThreadID()
	for i, t := range store.Threads() {
		marker := " "
		if t.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %d. %s\n", marker, i+1, t.Name)
		for _, br := range t.Branches {
			bm := " "
			if br.ID == t.CurrentBranchID {
				bm = ">"
			}
			fmt.Printf("   %s [%d] %-16s %3d message(s)  %s\n",
				bm, br.ID, util.TruncateRunes(br.Name, 16), len(br.Messages),
				br.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
}

// ExportThread writes the named thread's current branch to a Markdown
// file. The id may be a full thread id, an id prefix, or a 1-based list
// index as printed by ListThreads.
func ExportThread(store *conversation.Store, id, output string) error {
	thread, err := resolveThread(store, id)
	if err != nil {
		return err
	}
	branch := thread.CurrentBranch()

	if output == "" {
		output = "loom-export-" + time.Now().Format("20060102-150405") + ".md"
	}
	if err := storage.WriteMarkdown(output, thread, *branch); err != nil {
		return err
	}
	fmt.Println("exported to " + output)
	return nil
}

func resolveThread(store *conversation.Store, id string) (conversation.Thread, error) {
	threads := store.Threads()

	// 1-based index as printed by ListThreads.
	var n int
	if _, err := fmt.Sscanf(id, "%d", &n); err == nil && n >= 1 && n <= len(threads) {
		return threads[n-1], nil
	}

	for _, t := range threads {
		if t.ID == id || strings.HasPrefix(t.ID, id) {
			return t, nil
		}
	}
	return conversation.Thread{}, fmt.Errorf("no thread matching %q", id)
}
