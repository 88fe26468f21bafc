// Package restapi talks to the remote step-count HTTP API.
package restapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"example.com/stepcount/internal/syncerr"
)

const (
	component = "restapi"

	stepCountsPath = "/stepcounts"

	// nextCursorHeader names the header carrying the cursor of the following page.
	nextCursorHeader = "Next-Cursor"

	// maxPages bounds ListStepCounts against a server that never stops paging.
	maxPages = 1000

	// maxErrorBody caps how much of an error response is kept for logging.
	maxErrorBody = 4 << 10

	defaultTimeout = 10 * time.Second
)

// Payload is the wire form of a step count. The server assigns ID; clients send 0.
type Payload struct {
	ID    int64 `json:"id"`
	Count int   `json:"count"`
}

// APIError is a non-2xx response. Type and Detail are filled when the body is a
// {"type","detail"} problem document.
type APIError struct {
	StatusCode int
	Type       string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("step count API returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("step count API returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the step-count API.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client is used as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the default HTTP client's overall request timeout. It has no effect on a
// client supplied through WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a client with sane defaults.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// AddStepCount posts p and returns the record the server stored.
func (c *Client) AddStepCount(ctx context.Context, p Payload) (*Payload, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, syncerr.NewValidationError(syncerr.OpPost, err)
	}

	var created Payload
	if _, err := c.do(ctx, syncerr.OpPost, http.MethodPost, c.baseURL+stepCountsPath, bytes.NewReader(body), &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListStepCounts returns every step count the server holds, following the Next-Cursor
// header across pages.
func (c *Client) ListStepCounts(ctx context.Context) ([]Payload, error) {
	var all []Payload
	cursor := ""
	for range maxPages {
		target := c.baseURL + stepCountsPath
		if cursor != "" {
			target += "?" + url.Values{"cursor": {cursor}}.Encode()
		}

		var page []Payload
		header, err := c.do(ctx, syncerr.OpList, http.MethodGet, target, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		cursor = header.Get(nextCursorHeader)
		if cursor == "" || len(page) == 0 {
			return all, nil
		}
	}
	return nil, syncerr.NewRejectedError(syncerr.OpList, component, fmt.Errorf("listing exceeded %d pages", maxPages))
}

func (c *Client) do(ctx context.Context, op syncerr.Op, method, target string, body io.Reader, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, syncerr.NewValidationError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, syncerr.NewNetworkError(op, component, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, syncerr.NewRejectedError(op, component, decodeAPIError(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.NewNetworkError(op, component, fmt.Errorf("read response: %w", err))
	}
	// An empty 2xx body still acknowledges the request.
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, syncerr.NewNetworkError(op, component, fmt.Errorf("decode response: %w", err))
	}
	return resp.Header, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}

	var problem struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &problem) == nil {
		apiErr.Type = problem.Type
		apiErr.Detail = problem.Detail
	}
	return apiErr
}
