// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach provides file attachment handling for loom.
package attach

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// =============================================================================
// TOKEN COUNTING
// =============================================================================

// Encoding used for token estimates. cl100k_base matches the tokenizer
// family of the backend models closely enough for budgeting.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// encoder lazily initializes the tiktoken encoding. Initialization is
// expensive (loads the BPE ranks), so it happens once per process.
func encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// TokenCount returns a deterministic token estimate for text.
// On encoder failure it returns 0 rather than panicking; callers that
// need failure to be observable use countTokens instead.
func TokenCount(text string) int {
	n, err := countTokens(text)
	if err != nil {
		return 0
	}
	return n
}

// countTokens is the error-returning counterpart of TokenCount, used by
// Validate so a counting failure rejects the attachment instead of
// silently under-counting against the budget. Indirected through a
// variable so tests can substitute a deterministic counter.
var countTokens = realCountTokens

func realCountTokens(text string) (int, error) {
	e, err := encoder()
	if err != nil {
		return 0, err
	}
	return len(e.Encode(text, nil, nil)), nil
}
