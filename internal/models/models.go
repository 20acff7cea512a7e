// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models maps backend model identifiers to display names.
//
// Identifiers are opaque strings naming a backend-side model; the table
// only exists so the UI can show a human label.
package models

// Known Bedrock model identifiers.
const (
	ClaudeV35SonnetV2 = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
	ClaudeV35Sonnet   = "us.anthropic.claude-3-5-sonnet-20240620-v1:0"
	ClaudeV35Haiku    = "us.anthropic.claude-3-5-haiku-20241022-v1:0"
	ClaudeV3Opus      = "us.anthropic.claude-3-opus-20240229-v1:0"
	ClaudeV3Sonnet    = "us.anthropic.claude-3-sonnet-20240229-v1:0"
	ClaudeV3Haiku     = "us.anthropic.claude-3-haiku-20240307-v1:0"
)

// displayNames maps each known identifier to its UI label.
var displayNames = map[string]string{
	ClaudeV35SonnetV2: "Claude 3.5 Sonnet v2",
	ClaudeV35Sonnet:   "Claude 3.5 Sonnet",
	ClaudeV35Haiku:    "Claude 3.5 Haiku",
	ClaudeV3Opus:      "Claude 3 Opus",
	ClaudeV3Sonnet:    "Claude 3 Sonnet",
	ClaudeV3Haiku:     "Claude 3 Haiku",
}

// ordered lists the known models in selector order.
var ordered = []string{
	ClaudeV35SonnetV2,
	ClaudeV35Sonnet,
	ClaudeV35Haiku,
	ClaudeV3Opus,
	ClaudeV3Sonnet,
	ClaudeV3Haiku,
}

// Default returns the default model identifier.
func Default() string {
	return ClaudeV35Sonnet
}

// DisplayName returns the human label for a model identifier, falling
// back to the raw identifier for unknown models.
func DisplayName(id string) string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return id
}

// Known reports whether the identifier is in the table.
func Known(id string) bool {
	_, ok := displayNames[id]
	return ok
}

// List returns the known model identifiers in selector order.
func List() []string {
	out := make([]string, len(ordered))
	copy(out, ordered)
	return out
}

// Next returns the model after id in selector order, wrapping around.
// Unknown ids return the first model.
func Next(id string) string {
	for i, m := range ordered {
		if m == id {
			return ordered[(i+1)%len(ordered)]
		}
	}
	return ordered[0]
}
