// Package chatui implements the interactive terminal chat client. It talks
// to a running flowchat server over HTTP; all flow logic lives server-side.
package chatui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// chatRequest mirrors the server's POST /api/chat body.
type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// chatResponse mirrors the server's reply envelope.
type chatResponse struct {
	Response string `json:"response"`
	Intent   string `json:"intent"`
	TraceID  string `json:"trace_id"`
}

// Client posts utterances to the chat endpoint of a flowchat server.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// NewClient creates a Client for the server at baseURL, bound to one chat
// session.
func NewClient(baseURL, sessionID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		sessionID: sessionID,
		// The server may wait on NiFi retries, so the client waits longer
		// than a single remote call would.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Send posts one utterance and returns the rendered reply text.
func (c *Client) Send(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(chatRequest{Query: query, SessionID: c.sessionID})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("flowchat server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return parsed.Response, nil
}
