// ABOUTME: Tests for the request router: routing, authn/authz, error mapping, audit.
// ABOUTME: Covers the echo/auth/permission/missing-tool scenarios and panic recovery.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

type toolFunc struct {
	name string
	fn   func(ctx context.Context, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error)
}

func (t toolFunc) Name() string { return t.name }

func (t toolFunc) Execute(ctx context.Context, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error) {
	return t.fn(ctx, payload, authCtx)
}

type resourceFunc struct {
	name string
	fn   func(ctx context.Context, id *string, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error)
}

func (r resourceFunc) Name() string { return r.name }

func (r resourceFunc) Get(ctx context.Context, id *string, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error) {
	return r.fn(ctx, id, payload, authCtx)
}

func echoTool() toolFunc {
	return toolFunc{name: "echo", fn: func(_ context.Context, payload map[string]any, _ *auth.AuthContext) (map[string]any, error) {
		return payload, nil
	}}
}

func failingTool(name string, err error) toolFunc {
	return toolFunc{name: name, fn: func(context.Context, map[string]any, *auth.AuthContext) (map[string]any, error) {
		return nil, err
	}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingAudit struct {
	mu      sync.Mutex
	records []RequestRecord
	err     error
}

func (a *recordingAudit) RecordRequest(_ context.Context, rec RequestRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return a.err
}

type testEnv struct {
	server    *Server
	tools     *ToolRegistry
	resources *ResourceRegistry
	audit     *recordingAudit
}

func newTestEnv(t *testing.T, authEnabled bool, keys ...auth.APIKeyEntry) *testEnv {
	t.Helper()
	logger := testLogger()

	provider, err := auth.NewProvider(auth.ProviderConfig{Enabled: authEnabled, Keys: keys, Logger: logger})
	require.NoError(t, err)

	env := &testEnv{
		tools:     NewToolRegistry(logger),
		resources: NewResourceRegistry(logger),
		audit:     &recordingAudit{},
	}
	env.server, err = NewServer(Config{
		Tools:     env.tools,
		Resources: env.resources,
		Auth:      provider,
		Audit:     env.audit,
		Logger:    logger,
	})
	require.NoError(t, err)
	return env
}

func TestNewServerRequiresParts(t *testing.T) {
	logger := testLogger()
	provider, err := auth.NewProvider(auth.ProviderConfig{Logger: logger})
	require.NoError(t, err)

	_, err = NewServer(Config{Resources: NewResourceRegistry(logger), Auth: provider})
	assert.Error(t, err)
	_, err = NewServer(Config{Tools: NewToolRegistry(logger), Auth: provider})
	assert.Error(t, err)
	_, err = NewServer(Config{Tools: NewToolRegistry(logger), Resources: NewResourceRegistry(logger)})
	assert.Error(t, err)
}

func TestHandleRequestEchoWithAuthDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tools.Register(echoTool()))

	resp := env.server.HandleRequest(context.Background(), Request{
		ID:      "1",
		Kind:    KindTool,
		Target:  "echo",
		Payload: map[string]any{"x": 1},
		Headers: map[string]string{},
	})

	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, map[string]any{"x": 1}, resp.Result)
	assert.Nil(t, resp.Error)
}

func TestHandleRequestMissingKey(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:echo:execute"}})
	require.NoError(t, env.tools.Register(echoTool()))

	resp := env.server.HandleRequest(context.Background(), Request{ID: "2", Kind: KindTool, Target: "echo"})

	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeAuthenticationFailed, resp.Error.Code)
	assert.Nil(t, resp.Result)
}

func TestHandleRequestUnknownKeyLooksLikeMissingKey(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"*:*:*"}})
	require.NoError(t, env.tools.Register(echoTool()))

	missing := env.server.HandleRequest(context.Background(), Request{ID: "a", Kind: KindTool, Target: "echo"})
	unknown := env.server.HandleRequest(context.Background(), Request{
		ID: "a", Kind: KindTool, Target: "echo",
		Headers: map[string]string{"X-API-Key": "nope"},
	})

	assert.Equal(t, missing, unknown)
}

func TestHandleRequestInsufficientPermission(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:other:execute"}})
	require.NoError(t, env.tools.Register(echoTool()))

	resp := env.server.HandleRequest(context.Background(), Request{
		ID: "3", Kind: KindTool, Target: "echo",
		Headers: map[string]string{"X-API-Key": "k1"},
	})

	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeAuthorizationFailed, resp.Error.Code)
	assert.Equal(t, "tool:echo:execute", resp.Error.Data["required_permission"])
}

func TestHandleRequestHeaderNameIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:echo:execute"}})
	require.NoError(t, env.tools.Register(echoTool()))

	resp := env.server.HandleRequest(context.Background(), Request{
		ID: "4", Kind: KindTool, Target: "echo",
		Headers: map[string]string{"x-api-key": "k1"},
	})
	assert.Equal(t, StatusSuccess, resp.Status)
}

func TestHandleRequestUnknownTool(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.server.HandleRequest(context.Background(), Request{ID: "5", Kind: KindTool, Target: "missing"})

	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeToolNotFound, resp.Error.Code)
	assert.Equal(t, "missing", resp.Error.Data["tool"])
}

func TestHandleRequestResourceRouting(t *testing.T) {
	env := newTestEnv(t, false)

	var gotID *string
	require.NoError(t, env.resources.Register(resourceFunc{
		name: "documentation",
		fn: func(_ context.Context, id *string, _ map[string]any, _ *auth.AuthContext) (map[string]any, error) {
			gotID = id
			return map[string]any{"ok": true}, nil
		},
	}))

	resp := env.server.HandleRequest(context.Background(), Request{ID: "6", Kind: KindResource, Target: "documentation/design.md"})
	require.Equal(t, StatusSuccess, resp.Status)
	require.NotNil(t, gotID)
	assert.Equal(t, "design.md", *gotID)

	resp = env.server.HandleRequest(context.Background(), Request{ID: "7", Kind: KindResource, Target: "documentation"})
	require.Equal(t, StatusSuccess, resp.Status)
	assert.Nil(t, gotID)

	resp = env.server.HandleRequest(context.Background(), Request{ID: "8", Kind: KindResource, Target: "documentation/a/b.md"})
	require.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "a/b.md", *gotID)
}

func TestHandleRequestResourceAuthorization(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"resource:metadata:get"}})
	ok := resourceFunc{name: "documentation", fn: func(context.Context, *string, map[string]any, *auth.AuthContext) (map[string]any, error) {
		return nil, nil
	}}
	require.NoError(t, env.resources.Register(ok))

	resp := env.server.HandleRequest(context.Background(), Request{
		ID: "9", Kind: KindResource, Target: "documentation/x.md",
		Headers: map[string]string{"X-API-Key": "k1"},
	})
	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeAuthorizationFailed, resp.Error.Code)
	assert.Equal(t, "resource:documentation:get", resp.Error.Data["required_permission"])
}

func TestHandleRequestUnknownResource(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.server.HandleRequest(context.Background(), Request{ID: "10", Kind: KindResource, Target: "nope/1"})
	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeResourceNotFound, resp.Error.Code)
	assert.Equal(t, "nope", resp.Error.Data["resource"])
}

func TestHandleRequestMalformed(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown kind", Request{ID: "m1", Kind: "prompt", Target: "x"}},
		{"empty kind", Request{ID: "m2", Target: "x"}},
		{"empty target", Request{ID: "m3", Kind: KindTool}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.server.HandleRequest(context.Background(), tt.req)
			require.Equal(t, StatusError, resp.Status)
			assert.Equal(t, mcperr.CodeMalformedRequest, resp.Error.Code)
			assert.Equal(t, tt.req.ID, resp.ID)
		})
	}
}

func TestHandleRequestNilResultBecomesEmptyObject(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tools.Register(toolFunc{name: "noop", fn: func(context.Context, map[string]any, *auth.AuthContext) (map[string]any, error) {
		return nil, nil
	}}))

	resp := env.server.HandleRequest(context.Background(), Request{ID: "n", Kind: KindTool, Target: "noop"})
	require.Equal(t, StatusSuccess, resp.Status)
	assert.NotNil(t, resp.Result)
	assert.Empty(t, resp.Result)
	assert.True(t, resp.Valid())
}

func TestHandleRequestHandlerCannotMutateRequestPayload(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tools.Register(toolFunc{name: "mutate", fn: func(_ context.Context, payload map[string]any, _ *auth.AuthContext) (map[string]any, error) {
		payload["injected"] = true
		return nil, nil
	}}))

	payload := map[string]any{"x": 1}
	env.server.HandleRequest(context.Background(), Request{ID: "m", Kind: KindTool, Target: "mutate", Payload: payload})
	assert.NotContains(t, payload, "injected")
}

func TestHandleRequestHandlerErrorsNeverEscape(t *testing.T) {
	env := newTestEnv(t, false)

	cases := map[string]error{
		"plain":        errors.New("boom"),
		"execution":    &mcperr.ExecutionError{Op: "analyze", Err: errors.New("bad doc")},
		"not found":    fmt.Errorf("reading doc: %w", os.ErrNotExist),
		"permission":   fmt.Errorf("opening: %w", os.ErrPermission),
		"invalid":      mcperr.InvalidParameter("limit", "must be positive"),
		"unimpl":       mcperr.ErrNotImplemented,
		"component":    &mcperr.ComponentNotFoundError{Name: "consistency_analysis"},
		"config":       mcperr.Configuration("missing root"),
		"dependency":   &mcperr.MissingDependencyError{Dependency: "llm"},
		"deadline":     context.DeadlineExceeded,
		"cancelled":    context.Canceled,
		"authz inside": &mcperr.AuthorizationError{ClientID: "c", RequiredPermission: "recommendation:1:write"},
	}
	for name, handlerErr := range cases {
		require.NoError(t, env.tools.Register(failingTool(name, handlerErr)))
	}
	require.NoError(t, env.tools.Register(toolFunc{name: "panics", fn: func(context.Context, map[string]any, *auth.AuthContext) (map[string]any, error) {
		panic("kaboom")
	}}))

	for _, name := range env.tools.Names() {
		t.Run(name, func(t *testing.T) {
			var resp Response
			require.NotPanics(t, func() {
				resp = env.server.HandleRequest(context.Background(), Request{ID: name, Kind: KindTool, Target: name})
			})
			assert.Equal(t, StatusError, resp.Status)
			require.NotNil(t, resp.Error)
			assert.True(t, resp.Error.Code.Valid(), "code %q", resp.Error.Code)
			assert.True(t, resp.Valid())
		})
	}
}

func TestHandleRequestPanicMapsToInternalError(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tools.Register(toolFunc{name: "panics", fn: func(context.Context, map[string]any, *auth.AuthContext) (map[string]any, error) {
		panic("kaboom\nsecret stack line")
	}}))

	resp := env.server.HandleRequest(context.Background(), Request{ID: "p", Kind: KindTool, Target: "panics"})
	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeInternalServerError, resp.Error.Code)
	assert.Equal(t, "panic", resp.Error.Data["error_type"])
	assert.Equal(t, "panic: kaboom", resp.Error.Data["error_message"])
}

// brokenError panics when its message is read.
type brokenError struct{ detail *string }

func (b *brokenError) Error() string { return *b.detail }

func TestHandleRequestErrorsThatPanicWhileMapping(t *testing.T) {
	env := newTestEnv(t, false)

	cases := map[string]error{
		"nil execution": (*mcperr.ExecutionError)(nil),
		"nil not found": (*mcperr.ToolNotFoundError)(nil),
		"broken error":  &brokenError{},
	}
	for name, handlerErr := range cases {
		require.NoError(t, env.tools.Register(failingTool(name, handlerErr)))
	}

	for name, handlerErr := range cases {
		t.Run(name, func(t *testing.T) {
			var resp Response
			require.NotPanics(t, func() {
				resp = env.server.HandleRequest(context.Background(), Request{ID: name, Kind: KindTool, Target: name})
			})
			require.Equal(t, StatusError, resp.Status)
			assert.Equal(t, name, resp.ID)
			assert.Equal(t, mcperr.CodeInternalServerError, resp.Error.Code)
			assert.Equal(t, fmt.Sprintf("%T", handlerErr), resp.Error.Data["error_type"])
			assert.NotContains(t, resp.Error.Data, "error_message")
		})
	}
}

func TestHandleRequestPassesAuthContextAndCancellation(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:*:*"}})

	var seen *auth.AuthContext
	require.NoError(t, env.tools.Register(toolFunc{name: "wait", fn: func(ctx context.Context, _ map[string]any, authCtx *auth.AuthContext) (map[string]any, error) {
		seen = authCtx
		<-ctx.Done()
		return nil, ctx.Err()
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := env.server.HandleRequest(ctx, Request{
		ID: "c", Kind: KindTool, Target: "wait",
		Headers: map[string]string{"X-API-Key": "k1"},
	})

	require.NotNil(t, seen)
	assert.Equal(t, "c1", seen.ClientID)
	require.Equal(t, StatusError, resp.Status)
	assert.Equal(t, mcperr.CodeExecutionError, resp.Error.Code)
}

func TestHandleRequestAudit(t *testing.T) {
	env := newTestEnv(t, true, auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:echo:execute"}})
	require.NoError(t, env.tools.Register(echoTool()))
	require.NoError(t, env.tools.Register(failingTool("other", errors.New("x"))))

	env.server.HandleRequest(context.Background(), Request{ID: "a1", Kind: KindTool, Target: "echo", Headers: map[string]string{"X-API-Key": "k1"}})
	env.server.HandleRequest(context.Background(), Request{ID: "a2", Kind: KindTool, Target: "other", Headers: map[string]string{"X-API-Key": "k1"}})
	env.server.HandleRequest(context.Background(), Request{ID: "a3", Kind: KindTool, Target: "echo"})

	require.Len(t, env.audit.records, 3)

	assert.Equal(t, "a1", env.audit.records[0].RequestID)
	assert.Equal(t, "c1", env.audit.records[0].ClientID)
	assert.Equal(t, StatusSuccess, env.audit.records[0].Status)
	assert.Equal(t, StageResponded, env.audit.records[0].Stage)

	assert.Equal(t, mcperr.CodeAuthorizationFailed, env.audit.records[1].Code)
	assert.Equal(t, StageRouted, env.audit.records[1].Stage)

	assert.Equal(t, mcperr.CodeAuthenticationFailed, env.audit.records[2].Code)
	assert.Equal(t, StageReceived, env.audit.records[2].Stage)
	assert.Empty(t, env.audit.records[2].ClientID)
}

func TestHandleRequestAuditFailureDoesNotChangeResponse(t *testing.T) {
	env := newTestEnv(t, false)
	env.audit.err = errors.New("disk full")
	require.NoError(t, env.tools.Register(echoTool()))

	resp := env.server.HandleRequest(context.Background(), Request{ID: "x", Kind: KindTool, Target: "echo"})
	assert.Equal(t, StatusSuccess, resp.Status)
}

func TestDescriptorsFilteredByPermission(t *testing.T) {
	env := newTestEnv(t, true,
		auth.APIKeyEntry{Key: "k1", ClientID: "c1", Permissions: []string{"tool:echo:execute", "resource:*:get"}},
	)
	require.NoError(t, env.tools.Register(echoTool()))
	require.NoError(t, env.tools.Register(failingTool("hidden", nil)))
	require.NoError(t, env.resources.Register(resourceFunc{name: "documentation"}))

	authCtx, ok := env.server.Authenticator().Authenticate(Request{Headers: map[string]string{"X-API-Key": "k1"}})
	require.True(t, ok)

	tools := env.server.ToolDescriptors(authCtx)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	resources := env.server.ResourceDescriptors(authCtx)
	require.Len(t, resources, 1)
	assert.Equal(t, "documentation", resources[0].Name)

	assert.Empty(t, env.server.ToolDescriptors(nil))
}

func TestHandleRequestConcurrent(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tools.Register(echoTool()))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			resp := env.server.HandleRequest(context.Background(), Request{ID: id, Kind: KindTool, Target: "echo", Payload: map[string]any{"i": i}})
			assert.Equal(t, id, resp.ID)
			assert.Equal(t, i, resp.Result["i"])
		}(i)
	}
	wg.Wait()
}
