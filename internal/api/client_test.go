// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/loom-tui/internal/attach"
	"github.com/jeranaias/loom-tui/internal/conversation"
)

func testClient(baseURL string) *HTTPClient {
	return NewHTTPClient(&ClientConfig{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		PollRatePerSec: 1000,
	})
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateConversationPostsWireFormat(t *testing.T) {
	var mu sync.Mutex
	var got createRequest
	received := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		close(received)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	history := []conversation.Message{
		{Sender: conversation.RoleHuman, Text: "earlier",
			Attachments: []attach.Attachment{{Name: "f.txt", Content: "data"}}},
		{Sender: conversation.RoleAssistant, Text: "reply"},
	}
	client.CreateConversation("msg", history, "thread-1", 42, "model-x", "", func(err error) {
		t.Errorf("onError: %v", err)
	})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never saw the request")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Message != "msg" || got.ThreadID != "thread-1" || got.Timestamp != 42 || got.Model != "model-x" {
		t.Errorf("request = %+v", got)
	}
	if len(got.History) != 2 {
		t.Fatalf("history = %d entries", len(got.History))
	}
	// History messages carry their attachments inlined as text.
	want := "<file name=\"f.txt\">\ndata\n</file>\n\nearlier"
	if got.History[0].Text != want {
		t.Errorf("history[0].Text = %q, want %q", got.History[0].Text, want)
	}
	if got.History[1].Sender != "Assistant" {
		t.Errorf("history[1].Sender = %q", got.History[1].Sender)
	}
}

func TestCreateConversationReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	errCh := make(chan error, 1)
	testClient(srv.URL).CreateConversation("m", nil, "t", 0, "", "", func(err error) {
		errCh <- err
	})

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrBadStatus) {
			t.Errorf("error = %v, want ErrBadStatus", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onError never called")
	}
}

// =============================================================================
// POLL
// =============================================================================

func TestGetLatestResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/thread-1/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("timestamp") != "99" {
			t.Errorf("timestamp = %s", r.URL.Query().Get("timestamp"))
		}
		json.NewEncoder(w).Encode(PollResult{Status: StatusPending, LatestResponse: "par"})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).GetLatestResponse("thread-1", 99)
	if err != nil {
		t.Fatalf("GetLatestResponse: %v", err)
	}
	if got.Status != StatusPending || got.LatestResponse != "par" {
		t.Errorf("result = %+v", got)
	}
}

func TestGetLatestResponseBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetLatestResponse("t", 0)
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("error = %v, want ErrBadStatus", err)
	}
}

func TestGetLatestResponseUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	_, err := testClient(srv.URL).GetLatestResponse("t", 0)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
}

// =============================================================================
// ABORT AND SEND
// =============================================================================

func TestAbortConversation(t *testing.T) {
	var got abortRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/abort" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).AbortConversation("thread-9"); err != nil {
		t.Fatalf("AbortConversation: %v", err)
	}
	if got.ThreadID != "thread-9" {
		t.Errorf("ThreadID = %q", got.ThreadID)
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req sendRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(SendResult{LatestResponse: "echo: " + req.Prompt})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).SendMessage("hello", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.LatestResponse != "echo: hello" {
		t.Errorf("result = %+v", got)
	}
}

// =============================================================================
// SCRIPTED CLIENT
// =============================================================================

func TestScriptedClientStreams(t *testing.T) {
	c := NewScriptedClient()
	c.ChunkSize = 4
	c.Respond = func(string) string { return "abcdefghij" }

	c.CreateConversation("hi", nil, "t", 0, "", "", nil)

	r1, _ := c.GetLatestResponse("t", 0)
	if r1.Status != StatusPending || r1.LatestResponse != "abcd" {
		t.Errorf("poll 1 = %+v", r1)
	}
	r2, _ := c.GetLatestResponse("t", 0)
	if r2.Status != StatusPending || r2.LatestResponse != "abcdefgh" {
		t.Errorf("poll 2 = %+v", r2)
	}
	r3, _ := c.GetLatestResponse("t", 0)
	if r3.Status != StatusComplete || r3.LatestResponse != "abcdefghij" {
		t.Errorf("poll 3 = %+v", r3)
	}
	// The turn is consumed.
	r4, _ := c.GetLatestResponse("t", 0)
	if r4.Status != StatusComplete || r4.LatestResponse != "" {
		t.Errorf("poll 4 = %+v", r4)
	}
}

func TestScriptedClientAbort(t *testing.T) {
	c := NewScriptedClient()
	c.CreateConversation("hi", nil, "t", 0, "", "", nil)
	if err := c.AbortConversation("t"); err != nil {
		t.Fatal(err)
	}
	r, _ := c.GetLatestResponse("t", 0)
	if r.Status != StatusComplete || r.LatestResponse != "" {
		t.Errorf("poll after abort = %+v", r)
	}
	if got := c.Aborts(); len(got) != 1 || got[0] != "t" {
		t.Errorf("aborts = %v", got)
	}
}
