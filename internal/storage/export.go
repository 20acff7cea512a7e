// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists loom's durable state.
package storage

import (
	"strings"
	"time"

	"github.com/jeranaias/loom-tui/internal/conversation"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// MARKDOWN EXPORT
// =============================================================================

// ExportMarkdown renders one branch of a thread as Markdown: thread and
// branch metadata followed by every message with a role label. Pending
// attachments are listed by name; message attachment content is elided
// to keep exports readable.
func ExportMarkdown(thread conversation.Thread, branch conversation.Branch) string {
	var sb strings.Builder
	sb.WriteString("# " + thread.Name + "\n\n")
	sb.WriteString("Branch: " + branch.Name)
	if branch.Description != "" {
		sb.WriteString(" - " + branch.Description)
	}
	sb.WriteString("\n\nCreated: " + branch.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range branch.Messages {
		role := "**User**"
		if msg.Sender == conversation.RoleAssistant {
			role = "**Assistant**"
		}
		sb.WriteString(role + ":\n\n")
		if len(msg.Attachments) > 0 {
			for _, a := range msg.Attachments {
				sb.WriteString("> attached: `" + a.Name + "`\n")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// WriteMarkdown exports a branch to a file atomically.
func WriteMarkdown(path string, thread conversation.Thread, branch conversation.Branch) error {
	return util.AtomicWriteFile(path, []byte(ExportMarkdown(thread, branch)), 0644)
}
