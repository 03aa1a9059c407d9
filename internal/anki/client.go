// Package anki is a client for the AnkiConnect HTTP API exposed by the Anki
// desktop add-on. Every call is a POST of one envelope {action, version,
// params} to a single endpoint; the response contract is exactly two fields,
// error and result, and anything else is a protocol violation.
package anki

import (
	"bytes"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dipoleapp/dipole-server/internal/config"
	"github.com/dipoleapp/dipole-server/internal/ratelimit"
)

const (
	defaultURL     = "http://127.0.0.1:8765"
	defaultVersion = 6

	// AnkiConnect is a local single-threaded add-on; keep request pressure low.
	defaultRPS   = 10.0
	defaultBurst = 5

	defaultTimeout = 10 * time.Second
)

// Client is a rate-limited AnkiConnect client.
type Client struct {
	http    *http.Client
	url     string
	version int
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a new AnkiConnect client from configuration. Zero-valued
// fields fall back to the standard local AnkiConnect setup.
func New(cfg config.AnkiConfig, logger *slog.Logger) *Client {
	url := cfg.URL
	if url == "" {
		url = defaultURL
	}
	version := cfg.Version
	if version <= 0 {
		version = defaultVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		url:     url,
		version: version,
		limiter: ratelimit.New(rps, defaultBurst),
		logger:  logger,
	}
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.url
}

// envelope is the request shape shared by every action.
type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitzero"`
}

// invoke executes one AnkiConnect action and returns the raw result value.
// The response must carry exactly the two fields error and result; a null
// error yields the result, a string error yields a RemoteError.
func (c *Client) invoke(ctx context.Context, action string, params any) (jsontext.Value, error) {
	if err := c.limiter.Wait(ctx, action); err != nil {
		return nil, wrapTransport(action, fmt.Errorf("rate limit wait: %w", err))
	}

	payload, err := json.Marshal(envelope{
		Action:  action,
		Version: c.version,
		Params:  params,
	})
	if err != nil {
		return nil, wrapTransport(action, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, wrapTransport(action, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ankiconnect request", "action", action)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapTransport(action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport(action, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{
			Op:     action,
			Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	return parseResponse(action, body)
}

// parseResponse enforces the envelope contract on a response body.
func parseResponse(action string, body []byte) (jsontext.Value, error) {
	var fields map[string]jsontext.Value
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &ProtocolError{Op: action, Reason: fmt.Sprintf("parse response: %v", err)}
	}

	errField, hasErr := fields["error"]
	result, hasResult := fields["result"]
	if !hasErr || !hasResult || len(fields) != 2 {
		return nil, &ProtocolError{
			Op:     action,
			Reason: fmt.Sprintf("response must have exactly the fields error and result, got %d fields", len(fields)),
		}
	}

	if string(errField) != "null" {
		var msg string
		if err := json.Unmarshal(errField, &msg); err != nil {
			return nil, &ProtocolError{Op: action, Reason: "error field is neither null nor a string"}
		}
		return nil, &RemoteError{Op: action, Message: msg}
	}

	return result, nil
}
