// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api defines the boundary to the conversation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/loom-tui/internal/conversation"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBackendUnavailable indicates the backend could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBadStatus indicates a non-2xx HTTP response.
	ErrBadStatus = errors.New("unexpected backend status")
)

// =============================================================================
// HTTP CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration for the HTTP backend client.
type ClientConfig struct {
	// BaseURL of the conversation backend.
	BaseURL string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// PollRatePerSec caps GetLatestResponse calls per second. The
	// streaming controller already spaces polls by its interval; the
	// limiter is a backstop so a misconfigured interval cannot hammer
	// the backend. 0 means 20/s.
	PollRatePerSec float64
}

// DefaultClientConfig returns the default HTTP client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8900",
		Timeout:        30 * time.Second,
		PollRatePerSec: 20,
	}
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// HTTPClient talks JSON over HTTP to the conversation backend.
// Safe for concurrent use.
type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
	pollLimit  *rate.Limiter
}

// NewHTTPClient creates a backend client with the given configuration.
func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8900"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.PollRatePerSec <= 0 {
		config.PollRatePerSec = 20
	}

	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		pollLimit:  rate.NewLimiter(rate.Limit(config.PollRatePerSec), 1),
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type createRequest struct {
	Message       string        `json:"message"`
	History       []wireMessage `json:"history"`
	ThreadID      string        `json:"threadId"`
	Timestamp     int64         `json:"timestamp"`
	Model         string        `json:"model"`
	SystemContext string        `json:"systemContext"`
}

type sendRequest struct {
	Prompt  string        `json:"prompt"`
	History []wireMessage `json:"history"`
}

type abortRequest struct {
	ThreadID string `json:"threadId"`
}

// =============================================================================
// CLIENT INTERFACE IMPLEMENTATION
// =============================================================================

// CreateConversation submits a turn without waiting for the backend.
// The POST runs in its own goroutine; failures go to onError.
func (c *HTTPClient) CreateConversation(message string, history []conversation.Message, threadID string, timestamp int64, model string, systemContext string, onError func(error)) {
	req := createRequest{
		Message:       message,
		History:       toWire(history),
		ThreadID:      threadID,
		Timestamp:     timestamp,
		Model:         model,
		SystemContext: systemContext,
	}

	go func() {
		if err := c.post("/conversations", req, nil); err != nil {
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// GetLatestResponse polls the turn's response.
func (c *HTTPClient) GetLatestResponse(threadID string, timestamp int64) (PollResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	if err := c.pollLimit.Wait(ctx); err != nil {
		return PollResult{}, err
	}

	url := fmt.Sprintf("%s/conversations/%s/latest?timestamp=%d", c.config.BaseURL, threadID, timestamp)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return PollResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PollResult{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var result PollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PollResult{}, err
	}
	return result, nil
}

// AbortConversation cancels the thread's in-flight turn.
func (c *HTTPClient) AbortConversation(threadID string) error {
	return c.post("/conversations/abort", abortRequest{ThreadID: threadID}, nil)
}

// SendMessage issues a synchronous single-turn call.
func (c *HTTPClient) SendMessage(prompt string, history []conversation.Message) (SendResult, error) {
	var result SendResult
	err := c.post("/messages", sendRequest{Prompt: prompt, History: toWire(history)}, &result)
	return result, err
}

// post sends a JSON body and optionally decodes a JSON response.
func (c *HTTPClient) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
