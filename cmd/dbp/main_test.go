// ABOUTME: Tests for the dbp client CLI against an in-process MCP server
// ABOUTME: Covers queries, tools, resources, listings, streaming, gRPC, and exit codes

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/mcp"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

const testKey = "cli-test-key"

type toolFunc struct {
	name string
	fn   func(ctx context.Context, payload map[string]any) (map[string]any, error)
}

func (t toolFunc) Name() string        { return t.name }
func (t toolFunc) Description() string { return "test tool " + t.name }

func (t toolFunc) Execute(ctx context.Context, payload map[string]any, _ *auth.AuthContext) (map[string]any, error) {
	return t.fn(ctx, payload)
}

type docResource struct{}

func (docResource) Name() string { return "documentation" }

func (docResource) Get(_ context.Context, id *string, data map[string]any, _ *auth.AuthContext) (map[string]any, error) {
	if id == nil {
		return map[string]any{"documents": []any{"guide.md"}}, nil
	}
	if *id != "guide.md" {
		return nil, &mcperr.ResourceNotFoundError{Name: "documentation", ID: *id}
	}
	format, _ := data["format"].(string)
	if format == "" {
		format = "markdown"
	}
	return map[string]any{"document": map[string]any{"path": "guide.md"}, "format": format, "content": "# Guide"}, nil
}

func newTestMCP(t *testing.T) *mcp.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider, err := auth.NewProvider(auth.ProviderConfig{
		Enabled: true,
		Keys: []auth.APIKeyEntry{
			{Key: testKey, ClientID: "tester", Permissions: []string{"tool:*:execute", "resource:*:get"}},
		},
		Logger: logger,
	})
	require.NoError(t, err)

	tools := mcp.NewToolRegistry(logger)
	resources := mcp.NewResourceRegistry(logger)
	require.NoError(t, tools.Register(toolFunc{name: "dbp_general_query", fn: func(_ context.Context, p map[string]any) (map[string]any, error) {
		return map[string]any{
			"query":  p["query"],
			"answer": "Found 1 relevant document.",
			"matches": []any{
				map[string]any{"path": "guide.md", "title": "Guide", "score": 7, "snippet": "auth works like this"},
			},
		}, nil
	}}))
	require.NoError(t, tools.Register(toolFunc{name: "echo", fn: func(_ context.Context, p map[string]any) (map[string]any, error) {
		return map[string]any{"echo": p}, nil
	}}))
	require.NoError(t, tools.Register(toolFunc{name: "slow", fn: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		mcp.ReportProgress(ctx, 1, 2, "scanning")
		mcp.ReportProgress(ctx, 2, 2, "checking")
		return map[string]any{"done": true}, nil
	}}))
	require.NoError(t, resources.Register(docResource{}))

	server, err := mcp.NewServer(mcp.Config{Tools: tools, Resources: resources, Auth: provider, Logger: logger})
	require.NoError(t, err)
	return server
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	newTestMCP(t).RegisterRoutes(mux, nil)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ready":true,"components":[{"name":"documentation","initialized":true}]}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// runCLI runs the CLI with DBP_SERVER and DBP_API_KEY pointed at ts.
func runCLI(t *testing.T, ts *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	env := map[string]string{"DBP_SERVER": ts.URL, "DBP_API_KEY": testKey}
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr, func(k string) string { return env[k] })
	return stdout.String(), stderr.String(), err
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "query", "how", "does", "auth", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 relevant document.")
	assert.Contains(t, out, `1. guide.md "Guide" (score 7)`)
	assert.Contains(t, out, "auth works like this")
}

func TestQueryJSON(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "--json", "query", "auth")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
	assert.Contains(t, out, `"query": "auth"`)
}

func TestToolWithData(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "tool", "echo", "--data", `{"n":1}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"n": 1`)

	_, _, err = runCLI(t, ts, "tool", "echo", "--data", `[1]`)
	assert.ErrorContains(t, err, "--data must be a JSON object")
}

func TestToolErrorEnvelopeExitsNonZero(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "tool", "missing")
	var exit exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())
	assert.Contains(t, out, "TOOL_NOT_FOUND: ")
}

func TestResourcePrintsContent(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "resource", "documentation/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", out)

	out, _, err = runCLI(t, ts, "--json", "resource", "documentation/guide.md", "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, out, `"format": "html"`)
}

func TestResourceNotFound(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "resource", "documentation/nope.md")
	assert.ErrorAs(t, err, new(exitError))
	assert.Contains(t, out, "RESOURCE_NOT_FOUND")
}

func TestStreamPrintsProgress(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "--stream", "tool", "slow")
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2] scanning")
	assert.Contains(t, out, "[2/2] checking")
	assert.Contains(t, out, `"done": true`)
}

func TestListings(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "dbp_general_query")
	assert.Contains(t, out, "test tool echo")

	out, _, err = runCLI(t, ts, "resources")
	require.NoError(t, err)
	assert.Contains(t, out, "documentation")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	out, _, err := runCLI(t, ts, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "✓ documentation")
}

func TestGRPCTransport(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	newTestMCP(t).RegisterGRPC(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	ts := newTestServer(t)
	out, _, err := runCLI(t, ts, "--grpc", lis.Addr().String(), "tool", "echo", "-d", `{"via":"grpc"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"via": "grpc"`)
}

func TestUsageErrors(t *testing.T) {
	ts := newTestServer(t)

	_, stderr, err := runCLI(t, ts)
	assert.Equal(t, exitError(2), err)
	assert.Contains(t, stderr, "Commands:")

	out, _, err := runCLI(t, ts, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--server")

	_, _, err = runCLI(t, ts, "bogus")
	assert.ErrorContains(t, err, `unknown command "bogus"`)

	_, _, err = runCLI(t, ts, "query")
	assert.ErrorContains(t, err, "usage: dbp query TEXT")

	_, _, err = runCLI(t, ts, "--no-such-flag", "tools")
	assert.Error(t, err)
}
