// ABOUTME: HTTP client for the dbp-server envelope, listing, and health endpoints
// ABOUTME: Attaches the API key or bearer token and decodes response envelopes

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/dbp-gateway/internal/mcp"
)

// DefaultHeader is the API-key header used when Config.Header is empty.
const DefaultHeader = "X-API-Key"

// maxErrorBody bounds how much of an unexpected response is kept in HTTPError.
const maxErrorBody = 4 << 10

// HTTPError is returned when the server answers with a status the client
// cannot decode as an envelope.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Config holds client settings.
type Config struct {
	BaseURL     string // e.g. http://127.0.0.1:8080
	APIKey      string
	Header      string // defaults to DefaultHeader
	BearerToken string // sent as Authorization: Bearer when set
	HTTPClient  *http.Client
}

// Client talks to one dbp-server.
type Client struct {
	base   *url.URL
	apiKey string
	header string
	bearer string
	http   *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	header := cfg.Header
	if header == "" {
		header = DefaultHeader
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		base:   base,
		apiKey: cfg.APIKey,
		header: header,
		bearer: cfg.BearerToken,
		http:   hc,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(c.header, c.apiKey)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	return req, nil
}

// encodeEnvelope fills a missing request id and marshals the request.
func encodeEnvelope(req *mcp.Request) (*bytes.Reader, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Call sends req to /mcp and returns the response envelope. A missing id is
// filled with a fresh UUID.
func (c *Client) Call(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	body, err := encodeEnvelope(&req)
	if err != nil {
		return mcp.Response{}, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/mcp", body)
	if err != nil {
		return mcp.Response{}, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return mcp.Response{}, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeEnvelope(resp)
}

// decodeEnvelope reads a response envelope. The server answers decodable
// requests with 200 and undecodable ones with 400; both carry an envelope.
func decodeEnvelope(resp *http.Response) (mcp.Response, error) {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return mcp.Response{}, readHTTPError(resp)
	}
	var out mcp.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return mcp.Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

func readHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

// Tool executes the named tool.
func (c *Client) Tool(ctx context.Context, name string, data map[string]any) (mcp.Response, error) {
	return c.Call(ctx, mcp.Request{Kind: mcp.KindTool, Target: name, Payload: data})
}

// Resource fetches a resource target such as "documentation" or
// "documentation/guide.md".
func (c *Client) Resource(ctx context.Context, target string, data map[string]any) (mcp.Response, error) {
	return c.Call(ctx, mcp.Request{Kind: mcp.KindResource, Target: target, Payload: data})
}

// Descriptor describes a listed tool or resource. Schemas are kept raw.
type Descriptor struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

// Tools lists the tools the caller may execute.
func (c *Client) Tools(ctx context.Context) ([]Descriptor, error) {
	var out struct {
		Tools []Descriptor `json:"tools"`
	}
	if err := c.getJSON(ctx, "/mcp/tools", &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// Resources lists the resources the caller may get.
func (c *Client) Resources(ctx context.Context) ([]Descriptor, error) {
	var out struct {
		Resources []Descriptor `json:"resources"`
	}
	if err := c.getJSON(ctx, "/mcp/resources", &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// ComponentStatus is one entry of the readiness report.
type ComponentStatus struct {
	Name        string `json:"name"`
	Initialized bool   `json:"initialized"`
}

// ReadyStatus is the body of GET /health/ready.
type ReadyStatus struct {
	Ready      bool              `json:"ready"`
	Components []ComponentStatus `json:"components"`
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError(resp)
	}
	return nil
}

// Ready fetches component readiness. A server that is up but not ready
// answers 503 with a report; that is returned without error.
func (c *Client) Ready(ctx context.Context) (*ReadyStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health/ready", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, readHTTPError(resp)
	}
	var out ReadyStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding readiness: %w", err)
	}
	return &out, nil
}
