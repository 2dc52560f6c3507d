// Package control is the client side of the daemon's HTTP control API,
// used by the CLI subcommands and the MCP tool surface.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/streekit/streekeeper/pkg/types"
)

// DefaultBaseURL is where a locally served daemon listens.
const DefaultBaseURL = "http://127.0.0.1:7633"

// Connect retry tuning for WaitReady.
const (
	connectInitialInterval = 100 * time.Millisecond
	connectMaxInterval     = time.Second
	connectMaxElapsedTime  = 5 * time.Second
)

// APIError is a structured error response from the control API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("control API returned %d", e.StatusCode)
}

// Client talks to a running streekeeper daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at addr. addr may be a host:port
// or a full URL; empty means the default loopback address.
func New(addr string) *Client {
	base := DefaultBaseURL
	if addr != "" {
		if strings.Contains(addr, "://") {
			base = addr
		} else {
			base = "http://" + addr
		}
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// BaseURL returns the daemon address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks daemon liveness once.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// WaitReady blocks until the daemon answers its health check, retrying
// with exponential backoff, and fails once the retry budget or ctx is
// exhausted.
func (c *Client) WaitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectInitialInterval
	b.MaxInterval = connectMaxInterval
	b.MaxElapsedTime = connectMaxElapsedTime

	check := func() error {
		err := c.Health(ctx)
		// Only connection-level failures are worth retrying; an API
		// error means the daemon is up and answering.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil
		}
		return err
	}
	if err := backoff.Retry(check, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", c.baseURL, err)
	}
	return nil
}

// Status fetches the supervisor status.
func (c *Client) Status(ctx context.Context) (*types.Status, error) {
	var st types.Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StartServer asks the daemon to start the language server and returns
// the post-operation status.
func (c *Client) StartServer(ctx context.Context) (*types.Status, error) {
	var st types.Status
	if err := c.do(ctx, http.MethodPost, "/server/start", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StopServer asks the daemon to stop the language server.
func (c *Client) StopServer(ctx context.Context) (*types.Status, error) {
	var st types.Status
	if err := c.do(ctx, http.MethodPost, "/server/stop", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// RestartServer asks the daemon to restart the language server.
func (c *Client) RestartServer(ctx context.Context) (*types.Status, error) {
	var st types.Status
	if err := c.do(ctx, http.MethodPost, "/server/restart", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Logs fetches the most recent diagnostics log lines. n=0 requests
// everything the daemon retains; a negative n leaves the count to the
// daemon's default.
func (c *Client) Logs(ctx context.Context, n int) ([]string, error) {
	path := "/logs"
	if n >= 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var result types.LogsResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Lines, nil
}

// Visualize requests the syntax tree rendering of a file.
func (c *Client) Visualize(ctx context.Context, path string) (*types.VisualizeResult, error) {
	var result types.VisualizeResult
	err := c.do(ctx, http.MethodPost, "/visualize", map[string]string{"path": path}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Format requests a formatting preview diff for a file.
func (c *Client) Format(ctx context.Context, path string) (*types.FormatResult, error) {
	var result types.FormatResult
	err := c.do(ctx, http.MethodPost, "/format", map[string]string{"path": path}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Prompts lists pending recovery prompts.
func (c *Client) Prompts(ctx context.Context) ([]types.PromptInfo, error) {
	var prompts []types.PromptInfo
	if err := c.do(ctx, http.MethodGet, "/prompts", nil, &prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

// ResolvePrompt answers a pending recovery prompt. An empty action
// dismisses it.
func (c *Client) ResolvePrompt(ctx context.Context, id, action string) error {
	path := "/prompts/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPost, path, map[string]string{"action": action}, nil)
}

// do performs one request, decoding a success body into out and error
// bodies into APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
