// Package nifi provides a client for the Apache NiFi REST API.
//
// The client exposes the small set of operations the chat pipeline needs:
// listing and flattening flow entities, status queries, create/delete,
// run-state transitions, recursive search and component documentation.
// Responses are NiFi's deeply nested entity envelopes; fields are plucked
// out with gjson rather than mirroring the full schema in Go structs.
package nifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"flowchat/common/redact"
)

// AuthType selects how requests are authenticated against NiFi.
type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthBasic AuthType = "basic"
	AuthToken AuthType = "token"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection settings for one NiFi instance.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080/nifi-api".
	BaseURL string
	// Auth selects the authentication scheme.
	Auth AuthType
	// Username and Password are used when Auth == AuthBasic.
	Username string
	Password string
	// Token is the bearer token used when Auth == AuthToken.
	Token string
	// SkipTLSVerify disables certificate verification (self-signed NiFi).
	SkipTLSVerify bool
	// Timeout bounds every remote call. Defaults to 30s.
	Timeout time.Duration
}

// Client is an HTTP client for a single NiFi instance. Safe for concurrent
// use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	// sensitive holds values stripped from every error message and log line.
	sensitive []string
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Auth == "" {
		cfg.Auth = AuthNone
	}

	transport := http.DefaultTransport
	if cfg.SkipTLSVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		sensitive: []string{cfg.Password, cfg.Token},
	}
}

// About calls GET /flow/about and returns the reported NiFi version.
// Used as a connection test at startup and from the health endpoint.
func (c *Client) About(ctx context.Context) (string, error) {
	res, err := c.get(ctx, "/flow/about")
	if err != nil {
		return "", fmt.Errorf("connection test: %w", err)
	}
	return res.Get("about.version").String(), nil
}

// --- transport ------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (gjson.Result, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) put(ctx context.Context, path string, body any) (gjson.Result, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (gjson.Result, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch c.cfg.Auth {
	case AuthBasic:
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	case AuthToken:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		remoteErr := c.classifyTransport(err)
		slog.Debug("nifi: transport failure",
			"method", method, "path", path,
			"kind", remoteErr.Kind, "sent", remoteErr.Sent)
		return gjson.Result{}, remoteErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &RemoteError{
			Kind:    ErrUnavailable,
			Status:  resp.StatusCode,
			Message: c.redact(err.Error()),
			Sent:    true,
		}
	}

	if resp.StatusCode >= 400 {
		kind := ErrRejected
		if resp.StatusCode >= 500 {
			kind = ErrUnavailable
		}
		return gjson.Result{}, &RemoteError{
			Kind:    kind,
			Status:  resp.StatusCode,
			Message: c.redact(apiMessage(raw)),
			Sent:    true,
		}
	}

	return gjson.ParseBytes(raw), nil
}

// classifyTransport maps a transport-level error into the RemoteError
// taxonomy. Only failures that provably happened before the request went
// out (dial errors) are marked retry-safe for mutating calls.
func (c *Client) classifyTransport(err error) *RemoteError {
	msg := c.redact(err.Error())

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: ErrTimeout, Message: msg, Sent: true}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &RemoteError{Kind: ErrUnavailable, Message: msg, Sent: false}
	}

	return &RemoteError{Kind: ErrUnavailable, Message: msg, Sent: true}
}

func (c *Client) redact(s string) string {
	return redact.String(s, c.sensitive...)
}

// apiMessage extracts the error detail NiFi returns in a failure body.
// NiFi sends either a plain-text message or a JSON envelope.
func apiMessage(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return "no detail provided"
	}
	if parsed := gjson.ParseBytes(raw); parsed.IsObject() {
		for _, key := range []string{"message", "error", "detail"} {
			if v := parsed.Get(key); v.Exists() {
				return v.String()
			}
		}
	}
	if len(body) > 500 {
		body = body[:500]
	}
	return body
}
